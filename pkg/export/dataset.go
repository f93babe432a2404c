package export

// Dataset defines tabular export content. Rows are keyed by header.
type Dataset struct {
	Headers []string
	Rows    []map[string]string
}

// Records flattens the rows in header order. Missing cells are empty.
func (d Dataset) Records() [][]string {
	records := make([][]string, len(d.Rows))
	for i, row := range d.Rows {
		record := make([]string, len(d.Headers))
		for j, header := range d.Headers {
			record[j] = row[header]
		}
		records[i] = record
	}
	return records
}
