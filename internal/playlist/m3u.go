// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package playlist renders resolved channel sources as an M3U playlist.
package playlist

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Item is one playlist entry.
type Item struct {
	Name    string
	TvgID   string
	TvgChNo int
	TvgLogo string
	Group   string
	URL     string
	// MIMEType of the stream, written as an #EXTVLCOPT hint when set.
	MIMEType string
}

var attrReplacer = strings.NewReplacer(`"`, "'", "\r", " ", "\n", " ")
var lineReplacer = strings.NewReplacer("\r", " ", "\n", " ")

// WriteM3U writes items as an extended M3U document.
func WriteM3U(w io.Writer, items []Item) error {
	bw := bufio.NewWriter(w)
	_, _ = bw.WriteString("#EXTM3U\n")
	for _, it := range items {
		_, _ = fmt.Fprintf(bw,
			`#EXTINF:-1 tvg-chno="%d" tvg-id="%s" tvg-logo="%s" group-title="%s",%s`+"\n",
			it.TvgChNo, attrReplacer.Replace(it.TvgID), attrReplacer.Replace(it.TvgLogo),
			attrReplacer.Replace(it.Group), lineReplacer.Replace(it.Name),
		)
		if it.MIMEType != "" {
			_, _ = fmt.Fprintf(bw, "#EXTVLCOPT:http-content-type=%s\n", it.MIMEType)
		}
		_, _ = bw.WriteString(lineReplacer.Replace(it.URL) + "\n")
	}
	return bw.Flush()
}
