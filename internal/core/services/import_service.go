package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"toolhub/internal/adapters/persistence/models"
	"toolhub/internal/adapters/persistence/repositories"
	"toolhub/internal/adapters/spreadsheet"
	"toolhub/internal/core/domain"
	"toolhub/internal/pkg/password"
)

// ImportKind is what a spreadsheet import creates
type ImportKind string

const (
	ImportTools ImportKind = "tools"
	ImportUsers ImportKind = "users"
)

// Import defaults for unmapped or empty optional cells
const (
	DefaultImportStock = 1
	importSampleRows   = 5
)

// ErrUnknownImportKind is returned for kinds other than tools and users
var ErrUnknownImportKind = fmt.Errorf("%w: import kind must be tools or users", domain.ErrValidationFailed)

// ParseImportKind validates a kind from a path or flag
func ParseImportKind(s string) (ImportKind, error) {
	switch k := ImportKind(strings.ToLower(strings.TrimSpace(s))); k {
	case ImportTools, ImportUsers:
		return k, nil
	}
	return "", ErrUnknownImportKind
}

// Vocabulary returns the header keywords for the kind
func (k ImportKind) Vocabulary() spreadsheet.Vocabulary {
	if k == ImportUsers {
		return spreadsheet.UserVocabulary
	}
	return spreadsheet.ToolVocabulary
}

// ProposeMapping suggests a field -> header mapping for the kind
func ProposeMapping(kind ImportKind, headers []string) map[string]string {
	return kind.Vocabulary().Propose(headers)
}

// ImportIssue points at one offending cell
type ImportIssue struct {
	Row    int    `json:"row"`
	Field  string `json:"field"`
	Value  string `json:"value"`
	Reason string `json:"reason"`
}

// ImportRejectedError aborts a whole batch. Nothing from the batch is stored.
type ImportRejectedError struct {
	Duplicates []ImportIssue `json:"duplicates,omitempty"`
	Invalid    []ImportIssue `json:"invalid,omitempty"`
}

func (e *ImportRejectedError) Error() string {
	return fmt.Sprintf("import rejected: %d duplicate row(s), %d invalid row(s)",
		countRows(e.Duplicates), countRows(e.Invalid))
}

// Unwrap classifies the rejection: duplicates are a Conflict, anything
// else a validation failure.
func (e *ImportRejectedError) Unwrap() error {
	if len(e.Duplicates) > 0 {
		return domain.ErrConflict
	}
	return domain.ErrValidationFailed
}

func countRows(issues []ImportIssue) int {
	rows := map[int]struct{}{}
	for _, is := range issues {
		rows[is.Row] = struct{}{}
	}
	return len(rows)
}

// ImportPreview describes what a commit would do
type ImportPreview struct {
	Kind       ImportKind          `json:"kind"`
	HeaderRow  int                 `json:"header_row"`
	Headers    []string            `json:"headers"`
	Mapping    map[string]string   `json:"mapping"`
	Rows       int                 `json:"rows"`
	Sample     []map[string]string `json:"sample"`
	Duplicates []ImportIssue       `json:"duplicates"`
	Invalid    []ImportIssue       `json:"invalid"`
	Warnings   []ImportIssue       `json:"warnings"`
	Ready      bool                `json:"ready"`
}

// ImportResult is the outcome of a committed batch
type ImportResult struct {
	Kind     ImportKind    `json:"kind"`
	Created  int           `json:"created"`
	Codes    []string      `json:"codes,omitempty"`
	Warnings []ImportIssue `json:"warnings"`
}

// ImportService turns spreadsheet rows into tools or users. A batch is all
// or nothing: any duplicate or invalid row rejects every row.
type ImportService struct {
	repos           *repositories.Registry
	defaultPassword string
	maxRows         int
	cache           Cache
	log             *zap.Logger
}

// NewImportService creates a new import service. maxRows <= 0 disables
// the row limit; cache may be nil.
func NewImportService(repos *repositories.Registry, defaultPassword string, maxRows int, cache Cache) *ImportService {
	return &ImportService{
		repos:           repos,
		defaultPassword: defaultPassword,
		maxRows:         maxRows,
		cache:           cache,
		log:             zap.L().Named("import"),
	}
}

// Preview resolves the mapping and runs every check without writing
func (s *ImportService) Preview(ctx context.Context, kind ImportKind, table *spreadsheet.Table, overrides map[string]string) (*ImportPreview, error) {
	mapping, err := s.resolveMapping(kind, table, overrides)
	if err != nil {
		return nil, err
	}

	p, err := s.plan(ctx, s.repos, kind, table, mapping)
	if err != nil {
		return nil, err
	}

	preview := &ImportPreview{
		Kind:       kind,
		HeaderRow:  table.HeaderRow,
		Headers:    table.Headers,
		Mapping:    mapping,
		Rows:       len(table.Rows),
		Sample:     sample(table, mapping),
		Duplicates: p.duplicates,
		Invalid:    p.invalid,
		Warnings:   p.warnings,
		Ready:      len(p.duplicates) == 0 && len(p.invalid) == 0,
	}
	return preview, nil
}

// Commit inserts every row in one transaction, or none. A rejected batch
// returns *ImportRejectedError listing all offending rows.
func (s *ImportService) Commit(ctx context.Context, kind ImportKind, table *spreadsheet.Table, overrides map[string]string) (*ImportResult, error) {
	mapping, err := s.resolveMapping(kind, table, overrides)
	if err != nil {
		return nil, err
	}

	result := &ImportResult{Kind: kind}
	err = s.repos.Transaction(ctx, func(tx *repositories.Registry) error {
		p, err := s.plan(ctx, tx, kind, table, mapping)
		if err != nil {
			return err
		}
		if len(p.duplicates) > 0 || len(p.invalid) > 0 {
			return &ImportRejectedError{Duplicates: p.duplicates, Invalid: p.invalid}
		}
		result.Warnings = p.warnings

		switch kind {
		case ImportTools:
			if err := tx.Tools.CreateBatch(ctx, p.tools); err != nil {
				return importInsertError(err)
			}
			for _, t := range p.tools {
				result.Codes = append(result.Codes, t.Code)
			}
			result.Created = len(p.tools)
		case ImportUsers:
			if err := tx.Users.CreateBatch(ctx, p.users); err != nil {
				return importInsertError(err)
			}
			result.Created = len(p.users)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("import committed", zap.String("kind", string(kind)), zap.Int("created", result.Created))
	if kind == ImportTools {
		invalidateReports(ctx, s.cache)
	}
	return result, nil
}

// importInsertError maps a unique violation that slipped past the checks,
// such as a concurrent import, to Conflict.
func importInsertError(err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("%w: a row collided with a record stored meanwhile", domain.ErrConflict)
	}
	return err
}

// resolveMapping merges caller overrides over the proposed mapping. An
// override naming an empty header removes the field.
func (s *ImportService) resolveMapping(kind ImportKind, table *spreadsheet.Table, overrides map[string]string) (map[string]string, error) {
	if table == nil || len(table.Rows) == 0 {
		return nil, fmt.Errorf("%w: the sheet has no data rows", domain.ErrValidationFailed)
	}
	if s.maxRows > 0 && len(table.Rows) > s.maxRows {
		return nil, fmt.Errorf("%w: %d rows exceed the limit of %d", domain.ErrValidationFailed, len(table.Rows), s.maxRows)
	}

	vocab := kind.Vocabulary()
	mapping := vocab.Propose(table.Headers)

	for field, header := range overrides {
		if _, ok := vocab.Field(field); !ok {
			return nil, fmt.Errorf("%w: unknown %s field %q", domain.ErrValidationFailed, kind, field)
		}
		if strings.TrimSpace(header) == "" {
			delete(mapping, field)
			continue
		}
		col := table.Column(header)
		if col < 0 {
			return nil, fmt.Errorf("%w: column %q not found in the sheet", domain.ErrValidationFailed, header)
		}
		mapping[field] = table.Headers[col]
	}

	for _, f := range vocab {
		if _, ok := mapping[f.Name]; f.Required && !ok {
			return nil, fmt.Errorf("%w: no column is mapped to required field %q", domain.ErrValidationFailed, f.Name)
		}
	}
	return mapping, nil
}

func sample(table *spreadsheet.Table, mapping map[string]string) []map[string]string {
	n := min(len(table.Rows), importSampleRows)
	out := make([]map[string]string, 0, n)
	for _, row := range table.Rows[:n] {
		rec := make(map[string]string, len(mapping))
		for field, header := range mapping {
			rec[field] = row.Cell(table.Column(header))
		}
		out = append(out, rec)
	}
	return out
}

// importPlan is the checked batch ready for insertion
type importPlan struct {
	tools      []*models.Tool
	users      []*models.User
	duplicates []ImportIssue
	invalid    []ImportIssue
	warnings   []ImportIssue
}

// mappedRow reads mapped fields of one row
type mappedRow struct {
	spreadsheet.Row
	columns map[string]int
}

func (r mappedRow) get(field string) string {
	col, ok := r.columns[field]
	if !ok {
		return ""
	}
	return r.Cell(col)
}

func mapRows(table *spreadsheet.Table, mapping map[string]string) []mappedRow {
	columns := make(map[string]int, len(mapping))
	for field, header := range mapping {
		columns[field] = table.Column(header)
	}

	rows := make([]mappedRow, len(table.Rows))
	for i, row := range table.Rows {
		rows[i] = mappedRow{Row: row, columns: columns}
	}
	return rows
}

func (s *ImportService) plan(ctx context.Context, repos *repositories.Registry, kind ImportKind, table *spreadsheet.Table, mapping map[string]string) (*importPlan, error) {
	rows := mapRows(table, mapping)
	if kind == ImportUsers {
		return s.planUsers(ctx, repos, rows)
	}
	return s.planTools(ctx, repos, rows)
}

func (s *ImportService) planTools(ctx context.Context, repos *repositories.Registry, rows []mappedRow) (*importPlan, error) {
	p := &importPlan{}

	names := newDupIndex("name")
	codes := newDupIndex("code")
	for _, r := range rows {
		if name := r.get("name"); name == "" {
			p.invalid = append(p.invalid, ImportIssue{Row: r.Number, Field: "name", Reason: "name is required"})
		} else {
			names.add(r.Number, name)
		}
		if code := r.get("code"); code != "" {
			codes.add(r.Number, code)
		}
	}

	existingNames, err := repos.Tools.FindExistingNames(ctx, names.values())
	if err != nil {
		return nil, err
	}
	existingCodes, err := repos.Tools.FindExistingCodes(ctx, codes.values())
	if err != nil {
		return nil, err
	}
	p.duplicates = append(names.issues(existingNames), codes.issues(existingCodes)...)
	sortIssues(p.duplicates)

	categories, err := indexCategories(ctx, repos.Categories)
	if err != nil {
		return nil, err
	}
	allocator, err := NewToolCodeAllocator(ctx, repos.Tools)
	if err != nil {
		return nil, err
	}

	for _, r := range rows {
		tool := &models.Tool{
			Code:        r.get("code"),
			Name:        r.get("name"),
			Description: r.get("description"),
			Location:    r.get("location"),
			Condition:   string(domain.ParseCondition(r.get("condition"))),
			IsActive:    true,
		}

		stock := DefaultImportStock
		if raw := r.get("stock"); raw != "" {
			n, err := strconv.Atoi(strings.TrimSuffix(raw, ".0"))
			if err != nil || n < 0 {
				p.invalid = append(p.invalid, ImportIssue{Row: r.Number, Field: "stock", Value: raw, Reason: "stock must be a whole number >= 0"})
				continue
			}
			stock = n
		}
		tool.StockTotal = stock
		tool.StockAvailable = stock

		if raw := r.get("category"); raw != "" {
			if c, ok := categories[strings.ToLower(raw)]; ok {
				tool.CategoryID = &c.ID
			} else {
				p.warnings = append(p.warnings, ImportIssue{Row: r.Number, Field: "category", Value: raw, Reason: "unknown category, tool left uncategorized"})
			}
		}

		if tool.Code == "" {
			tool.Code = allocator.Next()
		}
		p.tools = append(p.tools, tool)
	}

	sortIssues(p.invalid)
	return p, nil
}

func (s *ImportService) planUsers(ctx context.Context, repos *repositories.Registry, rows []mappedRow) (*importPlan, error) {
	p := &importPlan{}

	emails := newDupIndex("email")
	usernames := newDupIndex("username")
	derived := map[int]string{}
	for _, r := range rows {
		email := strings.ToLower(r.get("email"))
		if email == "" {
			p.invalid = append(p.invalid, ImportIssue{Row: r.Number, Field: "email", Reason: "email is required"})
		} else if _, err := mail.ParseAddress(email); err != nil {
			p.invalid = append(p.invalid, ImportIssue{Row: r.Number, Field: "email", Value: email, Reason: "invalid email address"})
		} else {
			emails.add(r.Number, email)
		}
		if username := r.get("username"); username != "" {
			usernames.add(r.Number, username)
		} else if email != "" {
			derived[r.Number] = usernameFromEmail(email)
		}
	}

	existingEmails, err := repos.Users.FindExistingEmails(ctx, emails.values())
	if err != nil {
		return nil, err
	}
	emailIssues := emails.issues(existingEmails)

	// A row already flagged on its email is not flagged again on the
	// username derived from it.
	flagged := make(map[int]bool, len(emailIssues))
	for _, issue := range emailIssues {
		flagged[issue.Row] = true
	}
	for _, r := range rows {
		if username, ok := derived[r.Number]; ok && !flagged[r.Number] {
			usernames.add(r.Number, username)
		}
	}

	existingUsernames, err := repos.Users.FindExistingUsernames(ctx, usernames.values())
	if err != nil {
		return nil, err
	}
	p.duplicates = append(emailIssues, usernames.issues(existingUsernames)...)
	sortIssues(p.duplicates)

	// Hash once; every imported account shares the initial password.
	hashed, err := password.Hash(s.defaultPassword)
	if err != nil {
		return nil, err
	}

	for _, r := range rows {
		email := strings.ToLower(r.get("email"))

		role := domain.RoleBorrower
		if raw := r.get("role"); raw != "" {
			role = domain.Role(strings.ToUpper(raw))
			if !role.Valid() {
				p.invalid = append(p.invalid, ImportIssue{Row: r.Number, Field: "role", Value: raw, Reason: "role must be ADMIN, STAFF or BORROWER"})
				continue
			}
		}

		username := r.get("username")
		if username == "" {
			username = usernameFromEmail(email)
		}
		if n := utf8.RuneCountInString(username); n < 3 || n > usernameMaxLen {
			p.invalid = append(p.invalid, ImportIssue{Row: r.Number, Field: "username", Value: username, Reason: "username must be 3-50 characters"})
			continue
		}

		p.users = append(p.users, &models.User{
			Username: username,
			Email:    email,
			FullName: r.get("name"),
			Phone:    r.get("phone"),
			Password: hashed,
			Role:     string(role),
			IsActive: true,
		})
	}

	sortIssues(p.invalid)
	return p, nil
}

const usernameMaxLen = 50

// usernameFromEmail uses the full address cut to the column size in
// characters. Cut addresses can collide; planUsers reports that as a
// duplicate username.
func usernameFromEmail(email string) string {
	runes := []rune(email)
	if len(runes) > usernameMaxLen {
		return string(runes[:usernameMaxLen])
	}
	return email
}

// dupIndex groups rows by a case-insensitive value
type dupIndex struct {
	field   string
	rows    map[string][]int
	display map[string]string
	order   []string
}

func newDupIndex(field string) *dupIndex {
	return &dupIndex{field: field, rows: map[string][]int{}, display: map[string]string{}}
}

func (d *dupIndex) add(row int, value string) {
	key := strings.ToLower(strings.TrimSpace(value))
	if _, seen := d.rows[key]; !seen {
		d.order = append(d.order, key)
	}
	d.rows[key] = append(d.rows[key], row)
	if _, ok := d.display[key]; !ok {
		d.display[key] = value
	}
}

func (d *dupIndex) values() []string {
	return d.order
}

// issues flags every row whose value is already stored and every row of a
// group that repeats a value within the batch.
func (d *dupIndex) issues(existing []string) []ImportIssue {
	stored := make(map[string]bool, len(existing))
	for _, e := range existing {
		stored[e] = true
	}

	var out []ImportIssue
	for _, key := range d.order {
		rows := d.rows[key]
		for _, row := range rows {
			reason := ""
			switch {
			case stored[key]:
				reason = fmt.Sprintf("%s already exists", d.field)
			case len(rows) > 1:
				reason = fmt.Sprintf("%s repeated in rows %s", d.field, joinRows(rows))
			default:
				continue
			}
			out = append(out, ImportIssue{Row: row, Field: d.field, Value: d.display[key], Reason: reason})
		}
	}
	sortIssues(out)
	return out
}

func joinRows(rows []int) string {
	parts := make([]string, len(rows))
	for i, r := range rows {
		parts[i] = strconv.Itoa(r)
	}
	return strings.Join(parts, ", ")
}

func sortIssues(issues []ImportIssue) {
	sort.SliceStable(issues, func(i, j int) bool { return issues[i].Row < issues[j].Row })
}
