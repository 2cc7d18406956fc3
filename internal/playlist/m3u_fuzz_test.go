// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package playlist

import (
	"bytes"
	"strings"
	"testing"
)

// FuzzWriteM3U checks that arbitrary field values never add or split entries.
func FuzzWriteM3U(f *testing.F) {
	f.Add("Channel 1", "ch1", 1, "http://logo.png", "Group1", "http://stream1")
	f.Add("Test & <Special>", "test-id", 100, "", "Default", "http://example.com/stream")
	f.Add("", "", 0, "", "", "")
	f.Add("Unicode Тест\n#EXTINF", "unicode-1", 42, "\"", "Интер", "rtsp://stream\r\n")

	f.Fuzz(func(t *testing.T, name, tvgID string, tvgChNo int, tvgLogo, group, url string) {
		items := []Item{{Name: name, TvgID: tvgID, TvgChNo: tvgChNo, TvgLogo: tvgLogo, Group: group, URL: url}}

		var buf bytes.Buffer
		if err := WriteM3U(&buf, items); err != nil {
			t.Fatalf("WriteM3U failed: %v", err)
		}
		out := buf.String()
		if !strings.HasPrefix(out, "#EXTM3U\n") {
			t.Fatalf("output doesn't start with #EXTM3U")
		}
		if got := strings.Count(out, "\n"); got != 3 {
			t.Fatalf("expected 3 lines, got %d", got)
		}
	})
}
