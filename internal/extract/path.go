package extract

import "strings"

// normalizeEntryPath implements §4.4's path-safety rule and the S6 property:
// drop leading root components, drop "." components, and pop the
// accumulator on "..". The result is always relative and never climbs above
// where it started, so joining it under dest_dir cannot escape dest_dir
// (§8 property 4). This deliberately diverges from the original's
// normalize_path, which re-pushes a leading root component onto the
// accumulator — joining an absolute path under dest_dir in Go (or Rust's
// PathBuf::push) discards dest_dir entirely, which is exactly the escape
// spec.md §4.4 requires closed.
func normalizeEntryPath(entryPath string) string {
	segments := strings.Split(entryPath, "/")
	stack := make([]string, 0, len(segments))

	for _, seg := range segments {
		switch seg {
		case "", ".":
			continue
		case "..":
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		default:
			stack = append(stack, seg)
		}
	}

	return strings.Join(stack, "/")
}
