package spreadsheet

import "strings"

// Field is a target field with the header keywords that map to it
type Field struct {
	Name     string   `json:"name"`
	Keywords []string `json:"keywords"`
	Required bool     `json:"required"`
}

// Vocabulary lists target fields in matching priority. A more specific
// field (username) comes before a generic one (name) so that a "Username"
// column is not claimed by name.
type Vocabulary []Field

// ToolVocabulary maps tool import columns
var ToolVocabulary = Vocabulary{
	{Name: "code", Keywords: []string{"kode", "code", "sku"}},
	{Name: "category", Keywords: []string{"kategori", "category", "jenis"}},
	{Name: "description", Keywords: []string{"deskripsi", "description", "keterangan", "spesifikasi"}},
	{Name: "location", Keywords: []string{"lokasi", "location", "rak", "gudang"}},
	{Name: "condition", Keywords: []string{"kondisi", "condition"}},
	{Name: "stock", Keywords: []string{"stok", "stock", "jumlah", "qty", "quantity"}},
	{Name: "name", Keywords: []string{"nama", "name", "alat", "tool", "barang"}, Required: true},
}

// UserVocabulary maps user import columns
var UserVocabulary = Vocabulary{
	{Name: "email", Keywords: []string{"email", "e-mail", "surel"}, Required: true},
	{Name: "username", Keywords: []string{"username", "user name", "nim", "nip"}},
	{Name: "phone", Keywords: []string{"telepon", "telp", "phone", "hp", "whatsapp"}},
	{Name: "role", Keywords: []string{"role", "peran"}},
	{Name: "name", Keywords: []string{"nama", "name"}},
}

// Field returns the field definition by name
func (v Vocabulary) Field(name string) (Field, bool) {
	for _, f := range v {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Hits counts cells that contain any keyword
func (v Vocabulary) Hits(row []string) int {
	hits := 0
	for _, cell := range row {
		c := normalize(cell)
		if c == "" {
			continue
		}
	fields:
		for _, f := range v {
			for _, kw := range f.Keywords {
				if strings.Contains(c, kw) {
					hits++
					break fields
				}
			}
		}
	}
	return hits
}

// Propose maps each field to a header by case-insensitive keyword
// matching. Exact matches are tried before substring matches, and each
// header is claimed by at most one field. Unmatched fields are absent.
func (v Vocabulary) Propose(headers []string) map[string]string {
	mapping := map[string]string{}
	used := make([]bool, len(headers))

	claim := func(f Field, match func(h, kw string) bool) {
		if _, done := mapping[f.Name]; done {
			return
		}
		for i, h := range headers {
			if used[i] || strings.TrimSpace(h) == "" {
				continue
			}
			for _, kw := range f.Keywords {
				if match(normalize(h), kw) {
					mapping[f.Name] = h
					used[i] = true
					return
				}
			}
		}
	}

	for _, f := range v {
		claim(f, func(h, kw string) bool { return h == kw })
	}
	for _, f := range v {
		claim(f, strings.Contains)
	}
	return mapping
}
