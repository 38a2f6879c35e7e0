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

// Package catalog registers ingested pages in the OpenWebUI relational
// catalog so they show up in the UI: one row per file, plus a manifest
// on the knowledge base listing every uploaded file.
package catalog

import (
	"context"

	"github.com/quarry-ai/quarry/core"
)

// Entry is one page's registration in the catalog.
type Entry struct {
	FileID      string
	Filename    string
	Content     string // rendered page content, hashed and sized for the row
	UserID      string
	ContentType string
	Provenance  core.Provenance
}

// Registrar records ingested files and maintains the knowledge manifest.
type Registrar interface {
	// Register inserts the file row if absent. It reports whether a new
	// row was written; an already-registered file is not an error.
	Register(ctx context.Context, entry *Entry) (bool, error)

	// FlushManifest rewrites the knowledge base's file list so the files
	// registered so far are visible in the UI.
	FlushManifest(ctx context.Context, files []core.FileRecord) error
}
