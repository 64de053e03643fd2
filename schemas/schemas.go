// Package schemas embeds the JSON Schemas for structured model output.
package schemas

import _ "embed"

// PatchBatch is the schema a model response must satisfy once the JSON object
// has been cut out of the surrounding prose.
//
//go:embed patch_batch.schema.json
var PatchBatch string
