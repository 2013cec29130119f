package export

import (
	"encoding/csv"
	"io"
)

// WriteCSV writes every sheet of the document, separated by a blank line.
func WriteCSV(w io.Writer, doc Document) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	for i, sheet := range doc.Sheets {
		if i > 0 {
			if err := writer.Write(nil); err != nil {
				return err
			}
		}
		if err := writer.Write([]string{sheet.Title}); err != nil {
			return err
		}
		header := make([]string, 0, len(sheet.Columns))
		for _, column := range sheet.Columns {
			header = append(header, column.Title)
		}
		if err := writer.Write(header); err != nil {
			return err
		}
		for _, row := range sheet.Rows {
			if err := writer.Write(row); err != nil {
				return err
			}
		}
	}
	writer.Flush()
	return writer.Error()
}
