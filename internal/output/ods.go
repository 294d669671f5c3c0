/*
PURPOSE:
  Writes the result workbook as an OpenDocument spreadsheet (.ods).

REQUIREMENTS:
  User-specified:
  - One table per sheet, in workbook order, named after the result base.
  - Numbers stay numbers so spreadsheets can chart them.

  Implementation-discovered:
  - The mimetype entry must be first and stored uncompressed.
  - Inf and NaN have no float form in ODS; they are written as text.

ARCHITECTURE INTEGRATION:
  - Called by: WriteWorkbook in workbook.go

ERROR HANDLING:
  - Returns the first zip or XML encoding error.

IMPLEMENTATION RULES:
  - Stream with xml.Encoder; never build the document in memory.

USAGE:
  err := output.EncodeODS(f, wb, meta)

SELF-HEALING INSTRUCTIONS:
  - If LibreOffice rejects a file, check the manifest entries first.

RELATED FILES:
  - internal/output/workbook.go

MAINTENANCE:
  - None.
*/

package output

import (
	"archive/zip"
	"encoding/xml"
	"io"
	"math"

	"github.com/daryltucker/encoder-bench/internal/model"
)

const odsMimeType = "application/vnd.oasis.opendocument.spreadsheet"

const odsManifest = `<?xml version="1.0" encoding="UTF-8"?>
<manifest:manifest xmlns:manifest="urn:oasis:names:tc:opendocument:xmlns:manifest:1.0" manifest:version="1.2">
 <manifest:file-entry manifest:full-path="/" manifest:version="1.2" manifest:media-type="` + odsMimeType + `"/>
 <manifest:file-entry manifest:full-path="content.xml" manifest:media-type="text/xml"/>
 <manifest:file-entry manifest:full-path="meta.xml" manifest:media-type="text/xml"/>
</manifest:manifest>
`

// EncodeODS writes wb as an OpenDocument spreadsheet, one table per sheet in
// workbook order.
func EncodeODS(w io.Writer, wb *model.Workbook, meta WorkbookMeta) error {
	zw := zip.NewWriter(w)

	// The mimetype entry must come first and be stored uncompressed.
	mt, err := zw.CreateHeader(&zip.FileHeader{Name: "mimetype", Method: zip.Store})
	if err != nil {
		return err
	}
	if _, err := io.WriteString(mt, odsMimeType); err != nil {
		return err
	}

	mf, err := zw.Create("META-INF/manifest.xml")
	if err != nil {
		return err
	}
	if _, err := io.WriteString(mf, odsManifest); err != nil {
		return err
	}

	mx, err := zw.Create("meta.xml")
	if err != nil {
		return err
	}
	if err := writeODSMeta(mx, meta); err != nil {
		return err
	}

	cx, err := zw.Create("content.xml")
	if err != nil {
		return err
	}
	if err := writeODSContent(cx, wb); err != nil {
		return err
	}

	return zw.Close()
}

func xmlName(local string) xml.Name { return xml.Name{Local: local} }

func attr(key, value string) xml.Attr { return xml.Attr{Name: xmlName(key), Value: value} }

func writeODSMeta(w io.Writer, meta WorkbookMeta) error {
	enc := xml.NewEncoder(w)
	if err := enc.EncodeToken(xml.ProcInst{Target: "xml", Inst: []byte(`version="1.0" encoding="UTF-8"`)}); err != nil {
		return err
	}

	root := xml.StartElement{Name: xmlName("office:document-meta"), Attr: []xml.Attr{
		attr("xmlns:office", "urn:oasis:names:tc:opendocument:xmlns:office:1.0"),
		attr("xmlns:meta", "urn:oasis:names:tc:opendocument:xmlns:meta:1.0"),
		attr("office:version", "1.2"),
	}}
	body := xml.StartElement{Name: xmlName("office:meta")}
	gen := xml.StartElement{Name: xmlName("meta:generator")}

	tokens := []xml.Token{root, body, gen, xml.CharData("encoder-bench"), gen.End()}
	if !meta.Created.IsZero() {
		created := xml.StartElement{Name: xmlName("meta:creation-date")}
		tokens = append(tokens, created, xml.CharData(meta.Created.UTC().Format("2006-01-02T15:04:05")), created.End())
	}
	if meta.RunID != "" {
		ud := xml.StartElement{Name: xmlName("meta:user-defined"), Attr: []xml.Attr{attr("meta:name", "run_id")}}
		tokens = append(tokens, ud, xml.CharData(meta.RunID), ud.End())
	}
	tokens = append(tokens, body.End(), root.End())

	for _, t := range tokens {
		if err := enc.EncodeToken(t); err != nil {
			return err
		}
	}
	return enc.Flush()
}

func writeODSContent(w io.Writer, wb *model.Workbook) error {
	enc := xml.NewEncoder(w)
	if err := enc.EncodeToken(xml.ProcInst{Target: "xml", Inst: []byte(`version="1.0" encoding="UTF-8"`)}); err != nil {
		return err
	}

	root := xml.StartElement{Name: xmlName("office:document-content"), Attr: []xml.Attr{
		attr("xmlns:office", "urn:oasis:names:tc:opendocument:xmlns:office:1.0"),
		attr("xmlns:table", "urn:oasis:names:tc:opendocument:xmlns:table:1.0"),
		attr("xmlns:text", "urn:oasis:names:tc:opendocument:xmlns:text:1.0"),
		attr("office:version", "1.2"),
	}}
	body := xml.StartElement{Name: xmlName("office:body")}
	spreadsheet := xml.StartElement{Name: xmlName("office:spreadsheet")}

	for _, t := range []xml.Token{root, body, spreadsheet} {
		if err := enc.EncodeToken(t); err != nil {
			return err
		}
	}

	for _, s := range wb.Sheets() {
		if err := writeODSTable(enc, s); err != nil {
			return err
		}
	}

	for _, t := range []xml.Token{spreadsheet.End(), body.End(), root.End()} {
		if err := enc.EncodeToken(t); err != nil {
			return err
		}
	}
	return enc.Flush()
}

func writeODSTable(enc *xml.Encoder, s *model.Sheet) error {
	table := xml.StartElement{Name: xmlName("table:table"), Attr: []xml.Attr{attr("table:name", s.Name)}}
	row := xml.StartElement{Name: xmlName("table:table-row")}

	if err := enc.EncodeToken(table); err != nil {
		return err
	}
	for _, cells := range s.Rows {
		if err := enc.EncodeToken(row); err != nil {
			return err
		}
		if len(cells) == 0 {
			cells = []model.Cell{{}}
		}
		for _, c := range cells {
			if err := writeODSCell(enc, c); err != nil {
				return err
			}
		}
		if err := enc.EncodeToken(row.End()); err != nil {
			return err
		}
	}
	return enc.EncodeToken(table.End())
}

func writeODSCell(enc *xml.Encoder, c model.Cell) error {
	cell := xml.StartElement{Name: xmlName("table:table-cell")}
	text := c.Text

	if c.Kind == model.Numeric {
		text = formatNumber(c.Number)
		if !math.IsInf(c.Number, 0) && !math.IsNaN(c.Number) {
			cell.Attr = []xml.Attr{attr("office:value-type", "float"), attr("office:value", text)}
		} else {
			cell.Attr = []xml.Attr{attr("office:value-type", "string")}
		}
	} else if text != "" {
		cell.Attr = []xml.Attr{attr("office:value-type", "string")}
	}

	if err := enc.EncodeToken(cell); err != nil {
		return err
	}
	if len(cell.Attr) > 0 {
		p := xml.StartElement{Name: xmlName("text:p")}
		for _, t := range []xml.Token{p, xml.CharData(text), p.End()} {
			if err := enc.EncodeToken(t); err != nil {
				return err
			}
		}
	}
	return enc.EncodeToken(cell.End())
}
