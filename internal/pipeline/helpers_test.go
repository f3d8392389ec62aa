package pipeline

import "github.com/sells-group/leadpipe-cli/internal/phone"

func testNorm() phone.Normalizer {
	return phone.Default
}
