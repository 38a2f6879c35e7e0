// Copyright 2026 Quarry Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package core

import "errors"

// Domain validation errors
var (
	// ErrInvalidSpace indicates a Space failed validation.
	ErrInvalidSpace = errors.New("invalid space")

	// ErrInvalidPage indicates a Page failed validation.
	ErrInvalidPage = errors.New("invalid page")

	// ErrEmptySpaceKey indicates the space key field is empty.
	ErrEmptySpaceKey = errors.New("space key cannot be empty")

	// ErrEmptyPageID indicates the page ID field is empty.
	ErrEmptyPageID = errors.New("page id cannot be empty")

	// ErrInvalidChunking indicates chunk size/overlap parameters that can
	// never advance the window.
	ErrInvalidChunking = errors.New("chunk overlap must be smaller than chunk size")
)
