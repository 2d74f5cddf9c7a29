package merge

import (
	"encoding/json"
	"fmt"
	"strings"
)

const SystemPrompt = `You are a professional text analysis assistant responsible for identifying paragraph structure. Return only a valid JSON array without any explanatory text. Content under different title numbers (like 1.2.2.1 and 1.2.2.2) must never be merged into the same paragraph.`

const MergePrompt = `The following are text fragments from a PDF converted to HTML. Each line of the page became a separate fragment, so sentences and paragraphs are broken apart. Decide which adjacent fragments form one paragraph.

Rules:
- Title patterns like "1.2.3.4", "Article 1.2.3.4" or "Section 1.2.3" are standalone paragraphs.
- "1.2.3.4 Something" starts a new paragraph.
- Numbered or lettered items (1), 2), a), (b)) each start a new paragraph; their text may span several fragments.
- Never reorder, drop or repeat fragments. Every index must appear exactly once, ascending.

Return a JSON array where each element is one paragraph:
[
  {"paragraph_index": 0, "chunk_indices": [0, 1, 2]},
  {"paragraph_index": 1, "chunk_indices": [3]}
]

Respond with ONLY the JSON array.`

// BuildPrompt creates the user prompt for one batch, including document and
// section context.
func BuildPrompt(req Request) string {
	var sb strings.Builder
	sb.WriteString(MergePrompt)
	sb.WriteString("\n\n---\n")
	if req.Title != "" {
		sb.WriteString(fmt.Sprintf("Document: %q\n", req.Title))
	}
	if len(req.Breadcrumb) > 0 {
		sb.WriteString("Section: ")
		sb.WriteString(strings.Join(req.Breadcrumb, " > "))
		sb.WriteString("\n")
	}
	if req.Language != "" {
		sb.WriteString("Language: " + req.Language + "\n")
	}
	if req.Style != "" {
		sb.WriteString("Style: " + req.Style + "\n")
	}
	sb.WriteString("---\n")
	frags, _ := json.Marshal(req.Fragments)
	sb.Write(frags)
	return sb.String()
}
