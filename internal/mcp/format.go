package mcp

import (
	"fmt"
	"strings"
)

// FormatPosts renders search results as markdown for clients that only
// read text content.
func FormatPosts(out *SearchPostsOutput) string {
	if out == nil || len(out.Results) == 0 {
		q := ""
		if out != nil {
			q = out.Query
		}
		return fmt.Sprintf("No posts found for \"%s\"", q)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "## Posts matching \"%s\"\n\n", out.Query)
	for i, r := range out.Results {
		fmt.Fprintf(&sb, "%d. **%s**", i+1, r.ID)
		if r.Author != "" {
			fmt.Fprintf(&sb, " by %s", r.Author)
		}
		fmt.Fprintf(&sb, " (%d points, %d comments, score %.3f)\n", r.NumPoints, r.NumComments, r.Score)
	}
	return sb.String()
}
