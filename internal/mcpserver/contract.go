package mcpserver

// DocumentFormatContract describes the canonical corpus document format
// that LLM consumers should follow when creating or mutating documents.
const DocumentFormatContract = `# Munin Document Format Contract

Every document in the corpus MUST follow this structure.

## Structure

` + "```" + `markdown
---
date: 2026-02-01                    # REQUIRED for sessions, ISO YYYY-MM-DD
status: active                      # plans only: planned|active|paused|complete|cancelled
author: Jane Doe                    # OPTIONAL - normalized to jane-doe internally
topics:                             # OPTIONAL - YAML list; used for containment filtering
  - refactoring
  - storage
---

Optional preamble text.

## Section Heading

Body text. A section runs from its heading to the next heading of equal
or shallower level, so deeper headings nest inside it.
` + "```" + `

## Rules

1. **The YAML header fences (` + "`---`" + `) must open the file** when a header is
   present. A file without a header is all body.
2. **Placement decides kind.** ` + "`sessions/`" + `, ` + "`plans/`" + `, and ` + "`patterns/`" + ` are the
   document directories; the id is the file stem (lower-case, hyphens).
3. **Status transitions are constrained.** planned → active → {paused,
   complete, cancelled}; paused → active. complete and cancelled are final.
4. **Never edit another writer's pointer file.** Your pointer lives at
   ` + "`plans/team/<your-normalized-name>.md`" + ` and is the only file you own there.
5. **TEAM_INDEX.md is derived.** It is regenerated by sync and any manual
   edit will be overwritten.
6. **Encoding** is UTF-8 with a trailing newline.

## Pointer file example

` + "```" + `markdown
---
author: jane-doe
plan: PLAN_storage-rewrite
status: active
updated: 2026-02-14
---
` + "```" + `
`
