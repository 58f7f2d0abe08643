package schema

// DefinitionMessageType tags record definition messages.
const DefinitionMessageType = "dibol_record_definition"

// Definition is a self-contained description of one record layout, suitable
// for publishing one message per record.
type Definition struct {
	MessageType string  `json:"message_type" yaml:"message_type"`
	RecordName  string  `json:"record_name" yaml:"record_name"`
	IsOverlay   bool    `json:"is_overlay" yaml:"is_overlay"`
	DeviceNo    *int    `json:"device_no" yaml:"device_no"`
	FieldCount  int     `json:"field_count" yaml:"field_count"`
	Fields      []Field `json:"fields" yaml:"fields"`
	TotalLength int     `json:"total_length" yaml:"total_length"`
}

// Definitions builds one Definition per record.
func Definitions(records []Record) []Definition {
	defs := make([]Definition, 0, len(records))
	for _, r := range records {
		defs = append(defs, Definition{
			MessageType: DefinitionMessageType,
			RecordName:  r.Name,
			IsOverlay:   r.IsOverlay,
			DeviceNo:    r.DeviceNo,
			FieldCount:  len(r.Fields),
			Fields:      r.Fields,
			TotalLength: r.TotalLength(),
		})
	}
	return defs
}

// Duplicates returns record names declared more than once, in order of
// their second appearance.
func Duplicates(records []Record) []string {
	seen := make(map[string]int, len(records))
	var dups []string
	for _, r := range records {
		seen[r.Name]++
		if seen[r.Name] == 2 {
			dups = append(dups, r.Name)
		}
	}
	return dups
}
