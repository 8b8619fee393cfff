package brief

type txtParser struct{}

func (txtParser) CanParse(filename string) bool { return hasSuffix(filename, ".txt") }

func (txtParser) Parse(_ string, content []byte) (string, error) {
	return string(content), nil
}

type markdownParser struct{}

func (markdownParser) CanParse(filename string) bool {
	return hasSuffix(filename, ".md", ".markdown")
}

func (markdownParser) Parse(_ string, content []byte) (string, error) {
	return normalizeNewlines(string(content)), nil
}
