package csvperm

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	apperrors "github.com/AllianceSoftware/csvpermissions-go/errors"
)

// fixedHeaders are the required leading columns of every permission table.
var fixedHeaders = [4]string{"Model", "App", "Action", "Is Global"}

// commentPrefixes mark rows to skip when they start the first cell.
var commentPrefixes = []string{"#", "//", ";"}

// predefinedActionGlobal maps well-known action names to their required
// global flag. Rows using these actions with the opposite flag are rejected.
var predefinedActionGlobal = map[string]bool{
	"list":   true,
	"create": true,
	"add":    true,
	"detail": false,
	"change": false,
	"update": false,
	"delete": false,
}

// ParseOptions control table parsing.
type ParseOptions struct {
	// PermName computes permission names; nil means DefaultPermName.
	PermName ResolvePermNameFunc
	// Catalog validates entity names; nil accepts any entity, lower-cased.
	Catalog EntityCatalog
}

// ParseResult is the outcome of parsing a single source.
type ParseResult struct {
	// Source is the identity of the parsed source.
	Source string
	// IsGlobal maps each permission to its global flag.
	IsGlobal map[PermName]bool
	// Entries maps permission -> user type -> unresolved cell.
	Entries map[PermName]map[UserType]UnresolvedEvaluator
	// UserTypes lists the non-empty user type columns in header order.
	UserTypes []UserType
}

// Parse reads one tabular source and captures every populated cell as an
// UnresolvedEvaluator.
//
// The header must begin with Model, App, Action, Is Global; the remaining
// columns name user types. Blank rows and rows whose first cell starts with
// "#", "//" or ";" are skipped. All cells are whitespace-trimmed.
func Parse(src Source, opts ParseOptions) (*ParseResult, error) {
	rc, err := src.Open()
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeTableRead, fmt.Sprintf("open permission table %s", src.Identity()), err)
	}
	defer rc.Close()
	return parse(src.Identity(), rc, opts)
}

func parse(identity string, r io.Reader, opts ParseOptions) (*ParseResult, error) {
	namer := opts.PermName
	if namer == nil {
		namer = DefaultPermName
	}

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeTableRead, fmt.Sprintf("read permission table %s", identity), err)
	}
	trimCells(header)

	userTypes, err := parseHeader(identity, header)
	if err != nil {
		return nil, err
	}

	result := &ParseResult{
		Source:    identity,
		IsGlobal:  make(map[PermName]bool),
		Entries:   make(map[PermName]map[UserType]UnresolvedEvaluator),
		UserTypes: namedUserTypes(userTypes),
	}

	empty := true
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, apperrors.Wrap(apperrors.CodeTableRead, fmt.Sprintf("read permission table %s", identity), err)
		}
		empty = false

		trimCells(record)
		if allEmpty(record) || isComment(record[0]) {
			continue
		}
		if err := parseRow(identity, record, userTypes, namer, opts.Catalog, result); err != nil {
			return nil, err
		}
	}

	if empty {
		return nil, apperrors.WithMetadata(apperrors.CodeTableEmpty,
			fmt.Sprintf("empty permission table %s", identity),
			map[string]string{"source": identity})
	}
	return result, nil
}

// parseHeader validates the fixed columns and returns the user type columns,
// including empty-named placeholders (data under those must stay empty).
func parseHeader(identity string, header []string) ([]UserType, error) {
	if len(header) < len(fixedHeaders) || header[0] != fixedHeaders[0] ||
		header[1] != fixedHeaders[1] || header[2] != fixedHeaders[2] || header[3] != fixedHeaders[3] {
		return nil, apperrors.WithMetadata(apperrors.CodeTableInvalidHeader,
			fmt.Sprintf("invalid permission table headers in %s: want %v", identity, fixedHeaders[:]),
			map[string]string{"source": identity})
	}

	var userTypes []UserType
	seen := make(map[UserType]struct{})
	named := 0
	for _, col := range header[len(fixedHeaders):] {
		userType := UserType(col)
		if userType != "" {
			if _, dup := seen[userType]; dup {
				return nil, apperrors.WithMetadata(apperrors.CodeTableDuplicateUserType,
					fmt.Sprintf("duplicate user type column %q in %s", col, identity),
					map[string]string{"source": identity, "user_type": col})
			}
			seen[userType] = struct{}{}
			named++
		}
		userTypes = append(userTypes, userType)
	}
	if named == 0 {
		return nil, apperrors.WithMetadata(apperrors.CodeTableInvalidHeader,
			fmt.Sprintf("no user type columns in %s", identity),
			map[string]string{"source": identity})
	}
	return userTypes, nil
}

func parseRow(identity string, record []string, userTypes []UserType, namer ResolvePermNameFunc, catalog EntityCatalog, result *ParseResult) error {
	if len(record) < len(fixedHeaders) {
		return apperrors.WithMetadata(apperrors.CodeTableIncompleteLine,
			fmt.Sprintf("incomplete line in %s: %v", identity, record),
			map[string]string{"source": identity})
	}

	entityName, app, action, globalFlag := record[0], record[1], record[2], record[3]

	var isGlobal bool
	switch globalFlag {
	case "yes":
		isGlobal = true
	case "no":
		isGlobal = false
	default:
		return apperrors.WithMetadata(apperrors.CodeTableInvalidGlobalFlag,
			fmt.Sprintf("invalid Is Global value %q in %s", globalFlag, identity),
			map[string]string{"source": identity, "value": globalFlag})
	}

	if expected, ok := predefinedActionGlobal[action]; ok && expected != isGlobal {
		return apperrors.WithMetadata(apperrors.CodeTableActionGlobalMismatch,
			fmt.Sprintf("invalid action / global setting for %s.%s.%s in %s (is_global should not be %t)",
				app, entityName, action, identity, isGlobal),
			map[string]string{"source": identity, "app": app, "entity": entityName, "action": action})
	}

	entity := ""
	if entityName != "" {
		if catalog != nil {
			canonical, ok := catalog.EntityName(app, entityName)
			if !ok {
				return apperrors.WithMetadata(apperrors.CodeTableUnknownEntity,
					fmt.Sprintf("unknown entity %s.%s in %s", app, entityName, identity),
					map[string]string{"source": identity, "app": app, "entity": entityName})
			}
			entity = canonical
		} else {
			entity = strings.ToLower(entityName)
		}
	}

	perm := namer(app, entity, action, isGlobal)

	if prior, ok := result.IsGlobal[perm]; ok && prior != isGlobal {
		return conflictGlobal(perm, identity, identity)
	}
	result.IsGlobal[perm] = isGlobal
	if result.Entries[perm] == nil {
		result.Entries[perm] = make(map[UserType]UnresolvedEvaluator)
	}

	for i, userType := range userTypes {
		cellIdx := len(fixedHeaders) + i
		if cellIdx >= len(record) {
			// ragged row: trailing user types simply have no cell
			break
		}
		cell := record[cellIdx]
		if userType == "" {
			if cell != "" {
				return apperrors.WithMetadata(apperrors.CodeTableUnnamedColumnCell,
					fmt.Sprintf("cell %q under unnamed column in %s", cell, identity),
					map[string]string{"source": identity, "value": cell})
			}
			continue
		}

		entry := UnresolvedEvaluator{
			App:        app,
			Entity:     entity,
			IsGlobal:   isGlobal,
			Permission: perm,
			Action:     action,
			UserType:   userType,
			Name:       cell,
			Source:     identity,
		}
		existing, ok := result.Entries[perm][userType]
		if !ok {
			result.Entries[perm][userType] = entry
			continue
		}
		// duplicate rows within one source follow the merge cell rules
		kept, err := mergeCell(existing, entry)
		if err != nil {
			return err
		}
		result.Entries[perm][userType] = kept
	}
	return nil
}

func namedUserTypes(userTypes []UserType) []UserType {
	var named []UserType
	for _, userType := range userTypes {
		if userType != "" {
			named = append(named, userType)
		}
	}
	return named
}

func trimCells(record []string) {
	for i, cell := range record {
		record[i] = strings.TrimSpace(cell)
	}
}

func allEmpty(record []string) bool {
	for _, cell := range record {
		if cell != "" {
			return false
		}
	}
	return true
}

func isComment(cell string) bool {
	for _, prefix := range commentPrefixes {
		if strings.HasPrefix(cell, prefix) {
			return true
		}
	}
	return false
}
