package template

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ondergetekende/logshipper/message"
)

// scalarTemplate is a compiled string template: a flat sequence of
// literal-text and field segments, built once at Compile time by
// parsing the replacement-field grammar (spec.md §3):
//
//	{N}            positional back-reference
//	{name}         named message field
//	{name[key]}    index access
//	{name.attr}    attribute access (equivalent to index access here,
//	               since messages have no real objects)
//	{...!r|!s|!a}  conversion
//	{...:spec}     format spec, itself possibly containing {nested}
type scalarTemplate struct {
	segments      []segment
	maxPositional int // highest positional index referenced, -1 if none
}

type segment struct {
	literal string
	field   *fieldSpec // nil when this segment is plain literal text
}

type accessorKind int

const (
	accessorIndex accessorKind = iota
	accessorAttr
)

type accessor struct {
	kind accessorKind
	key  string
}

type fieldSpec struct {
	positional bool
	index      int
	name       string
	accessors  []accessor
	conversion byte // 'r', 's', 'a', or 0
	formatSpec *scalarTemplate
}

// compileString parses a template literal into a scalarTemplate.
func compileString(s string) (*scalarTemplate, error) {
	st := &scalarTemplate{maxPositional: -1}
	autoIndex := 0

	var literal strings.Builder
	i := 0
	for i < len(s) {
		c := s[i]
		switch c {
		case '{':
			if i+1 < len(s) && s[i+1] == '{' {
				literal.WriteByte('{')
				i += 2
				continue
			}
			if literal.Len() > 0 {
				st.segments = append(st.segments, segment{literal: literal.String()})
				literal.Reset()
			}
			fieldText, next, err := scanField(s, i)
			if err != nil {
				return nil, err
			}
			fs, err := parseFieldSpec(fieldText, &autoIndex)
			if err != nil {
				return nil, err
			}
			if fs.positional && fs.index > st.maxPositional {
				st.maxPositional = fs.index
			}
			if fs.formatSpec != nil && fs.formatSpec.maxPositional > st.maxPositional {
				st.maxPositional = fs.formatSpec.maxPositional
			}
			st.segments = append(st.segments, segment{field: fs})
			i = next
		case '}':
			if i+1 < len(s) && s[i+1] == '}' {
				literal.WriteByte('}')
				i += 2
				continue
			}
			return nil, fmt.Errorf("template: unmatched '}' at offset %d", i)
		default:
			literal.WriteByte(c)
			i++
		}
	}
	if literal.Len() > 0 {
		st.segments = append(st.segments, segment{literal: literal.String()})
	}
	return st, nil
}

// scanField finds the field content between the '{' at s[open] and its
// matching '}', returning that content and the index just past the
// closing brace. Braces nested inside a format spec (e.g. "{:{width}}")
// are tracked with a depth counter.
func scanField(s string, open int) (string, int, error) {
	depth := 1
	i := open + 1
	start := i
	for i < len(s) {
		switch s[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start:i], i + 1, nil
			}
		}
		i++
	}
	return "", 0, fmt.Errorf("template: unmatched '{' at offset %d", open)
}

func parseFieldSpec(text string, autoIndex *int) (*fieldSpec, error) {
	nameEnd := len(text)
	conv := byte(0)
	specStart := -1

	bracketDepth := 0
	for i := 0; i < len(text); i++ {
		c := text[i]
		switch c {
		case '[':
			bracketDepth++
		case ']':
			if bracketDepth > 0 {
				bracketDepth--
			}
		case '!':
			if bracketDepth == 0 {
				nameEnd = i
				if i+1 < len(text) {
					conv = text[i+1]
				}
				if i+2 < len(text) && text[i+2] == ':' {
					specStart = i + 3
				}
				i = len(text) // break outer loop
			}
		case ':':
			if bracketDepth == 0 {
				nameEnd = i
				specStart = i + 1
				i = len(text)
			}
		}
		if i >= len(text) {
			break
		}
	}

	nameAndAccess := text[:nameEnd]
	var formatSpecText string
	if specStart >= 0 && specStart <= len(text) {
		formatSpecText = text[specStart:]
	}

	base, accessors, err := parseNameAndAccessors(nameAndAccess)
	if err != nil {
		return nil, err
	}

	fs := &fieldSpec{accessors: accessors, conversion: conv}
	if base == "" {
		fs.positional = true
		fs.index = *autoIndex
		*autoIndex++
	} else if idx, err := strconv.Atoi(base); err == nil {
		fs.positional = true
		fs.index = idx
	} else {
		fs.name = base
	}

	if formatSpecText != "" {
		nested, err := compileString(formatSpecText)
		if err != nil {
			return nil, fmt.Errorf("format spec: %w", err)
		}
		fs.formatSpec = nested
	}

	return fs, nil
}

func parseNameAndAccessors(s string) (string, []accessor, error) {
	i := 0
	for i < len(s) && s[i] != '[' && s[i] != '.' {
		i++
	}
	base := s[:i]

	var accessors []accessor
	for i < len(s) {
		switch s[i] {
		case '[':
			end := strings.IndexByte(s[i:], ']')
			if end < 0 {
				return "", nil, fmt.Errorf("template: unmatched '[' in %q", s)
			}
			key := s[i+1 : i+end]
			key = strings.Trim(key, `"'`)
			accessors = append(accessors, accessor{kind: accessorIndex, key: key})
			i += end + 1
		case '.':
			j := i + 1
			for j < len(s) && s[j] != '[' && s[j] != '.' {
				j++
			}
			accessors = append(accessors, accessor{kind: accessorAttr, key: s[i+1 : j]})
			i = j
		default:
			return "", nil, fmt.Errorf("template: unexpected character %q in %q", s[i], s)
		}
	}
	return base, accessors, nil
}

func (st *scalarTemplate) execute(msg message.Message, ctx *message.Context) (any, error) {
	if len(st.segments) == 1 && st.segments[0].field == nil {
		return st.segments[0].literal, nil
	}

	var out strings.Builder
	for _, seg := range st.segments {
		if seg.field == nil {
			out.WriteString(seg.literal)
			continue
		}
		rendered, err := seg.field.render(msg, ctx)
		if err != nil {
			return "", err
		}
		out.WriteString(rendered)
	}
	return out.String(), nil
}

func (f *fieldSpec) render(msg message.Message, ctx *message.Context) (string, error) {
	var value any
	if f.positional {
		if ctx == nil || f.index >= len(ctx.Backreferences) {
			avail := 0
			if ctx != nil {
				avail = len(ctx.Backreferences)
			}
			return "", &UnderflowError{Index: f.index, Available: avail}
		}
		value = ctx.Backreferences[f.index]
	} else {
		v, ok := msg[f.name]
		if !ok {
			value = ""
		} else {
			value = v
		}
	}

	for _, acc := range f.accessors {
		value = applyAccessor(value, acc)
	}

	value = applyConversion(value, f.conversion)

	if f.formatSpec != nil {
		specVal, err := f.formatSpec.execute(msg, ctx)
		if err != nil {
			return "", err
		}
		spec, _ := specVal.(string)
		return formatValue(value, spec)
	}

	return defaultString(value), nil
}

func applyAccessor(value any, acc accessor) any {
	switch v := value.(type) {
	case map[string]any:
		return v[acc.key]
	case []any:
		idx, err := strconv.Atoi(acc.key)
		if err != nil || idx < 0 || idx >= len(v) {
			return nil
		}
		return v[idx]
	default:
		return nil
	}
}

func applyConversion(value any, conv byte) any {
	switch conv {
	case 'r':
		return fmt.Sprintf("%#v", value)
	case 'a':
		return fmt.Sprintf("%q", defaultString(value))
	case 's':
		return defaultString(value)
	default:
		return value
	}
}

func defaultString(value any) string {
	if s, ok := value.(string); ok {
		return s
	}
	if value == nil {
		return ""
	}
	return fmt.Sprintf("%v", value)
}
