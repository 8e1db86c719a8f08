package extract

import (
	"archive/zip"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

const docxBody = "word/document.xml"

func (o *Orchestrator) extractDOCX(path string) (Result, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return Result{}, failure(ReasonUndecodable, "The uploaded DOCX could not be read.", fmt.Errorf("open docx: %w", err))
	}
	defer zr.Close()

	txt, err := docxText(&zr.Reader)
	if err != nil {
		return Result{}, failure(ReasonUndecodable, "The uploaded DOCX could not be read.", err)
	}
	if strings.TrimSpace(txt) == "" {
		return Result{}, failure(ReasonNoText, "The uploaded DOCX contains no text.", nil)
	}
	return Result{Pages: []string{txt}, Text: txt, Provenance: "docx"}, nil
}

// docxText returns the body text of a .docx, one line per paragraph. Tabs
// and breaks inside runs are kept.
func docxText(zr *zip.Reader) (string, error) {
	var body *zip.File
	for _, f := range zr.File {
		if f.Name == docxBody {
			body = f
			break
		}
	}
	if body == nil {
		return "", fmt.Errorf("open docx: %s missing", docxBody)
	}
	rc, err := body.Open()
	if err != nil {
		return "", fmt.Errorf("open %s: %w", docxBody, err)
	}
	defer rc.Close()

	var (
		paras []string
		cur   strings.Builder
		inT   bool
		inRun bool
	)
	dec := xml.NewDecoder(rc)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("parse %s: %w", docxBody, err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "r":
				inRun = true
			case "t":
				inT = true
			case "tab":
				// tab stops in paragraph properties are not content
				if inRun {
					cur.WriteByte('\t')
				}
			case "br", "cr":
				if inRun {
					cur.WriteByte('\n')
				}
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "r":
				inRun = false
			case "t":
				inT = false
			case "p":
				paras = append(paras, cur.String())
				cur.Reset()
			}
		case xml.CharData:
			if inT {
				cur.Write(t)
			}
		}
	}
	if cur.Len() > 0 {
		paras = append(paras, cur.String())
	}
	return strings.Join(paras, "\n"), nil
}
