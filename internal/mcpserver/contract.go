package mcpserver

// FrontmatterFormat describes the Markdown page format the sync engine
// understands, for LLM consumers that write content files.
const FrontmatterFormat = `# Chasqui Page Format

Every Markdown file under the content directory becomes one page.

## Structure

` + "```" + `markdown
---
identifier: guides/setup       # OPTIONAL – stable id; defaults to the path without .md
name: Setup guide              # OPTIONAL – display name (alias: title)
tags: [ops, install]           # OPTIONAL – YAML list or comma-separated string
created_datetime: 2025-01-15   # OPTIONAL – RFC3339 or YYYY-MM-DD (alias: created)
modified_datetime: 2025-01-20  # OPTIONAL – RFC3339 or YYYY-MM-DD (alias: modified)
---

Body text in standard Markdown (GitHub flavoured).

Link to other pages with ordinary Markdown links: [intro](../intro.md),
[intro](intro) or [intro](/guides/intro.md#section).
` + "```" + `

## Rules

1. **Identifiers are stable.** Renaming or moving a file keeps its page as long
   as the ` + "`" + `identifier` + "`" + ` field stays the same.
2. **Identifiers are unique.** When two files claim the same identifier the
   first one (by path) keeps it; the other is reported and not published.
3. **Links** may point at a file path (with or without ` + "`" + `.md` + "`" + `) or at an
   identifier. Relative links resolve from the linking file's directory.
   Resolved links are rewritten to the page route; fragments are kept.
4. **External links** (` + "`" + `https:` + "`" + `, ` + "`" + `mailto:` + "`" + `, ` + "`" + `//host` + "`" + `) and
   ` + "`" + `#anchors` + "`" + ` are left untouched.
5. **Hidden files**, files in hidden directories and editor backups ending in
   ` + "`" + `~` + "`" + ` are ignored.
6. **Encoding** is UTF-8.
`
