package document

// Field names one text field of a Document.
type Field int

const (
	FieldTitle Field = iota
	FieldAbstract
	FieldKeywords
	FieldChemicals
	FieldAuthors
	FieldLanguage
)

func (f Field) String() string {
	switch f {
	case FieldTitle:
		return "title"
	case FieldAbstract:
		return "abstract"
	case FieldKeywords:
		return "keywords"
	case FieldChemicals:
		return "chemicals"
	case FieldAuthors:
		return "authors"
	case FieldLanguage:
		return "language"
	default:
		return "unknown"
	}
}
