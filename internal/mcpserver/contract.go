package mcpserver

// SlugFormatURI is the resource URI of SlugFormat.
const SlugFormatURI = "travelogue://slug-format"

// SlugFormat describes how library slugs are formed so LLM clients can
// build get_post and find_series arguments without listing first.
const SlugFormat = `# Travelogue Slug Format

Tags and posts are addressed by slugs derived from their titles.

## Rules

1. Titles are lowercased and accents are folded (` + "`" + `Café` + "`" + ` becomes ` + "`" + `cafe` + "`" + `).
   Whitespace, hyphens and underscores collapse into one hyphen, ` + "`" + `&` + "`" + ` becomes ` + "`" + `and` + "`" + `
   and other punctuation is dropped.
2. Sibling tags with the same slug get a numeric suffix: ` + "`" + `rock-and-roll-2` + "`" + `.
3. A post titled ` + "`" + `Series: Part Name` + "`" + ` belongs to a series when another post shares
   the ` + "`" + `Series` + "`" + ` prefix. Its slug is ` + "`" + `series/part-name` + "`" + `.
4. The bare series slug (` + "`" + `series` + "`" + `) resolves to the first part.
5. A post whose prefix is unique keeps its full title as one slug.
6. Nested tags may be addressed by path: ` + "`" + `where/owyhee-county` + "`" + `.

## Example

| Title | Slug |
|---|---|
| Owyhee: Day 1 | owyhee/day-1 |
| Owyhee: Day 2 | owyhee/day-2 |
| Silver City | silver-city |
`
