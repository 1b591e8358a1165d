package profile

import (
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
)

// MaxEnum is the largest number of unique values to track before not trying to
// interpret the column as an enum.
const MaxEnum = 20

// Field accumulates the interpreted values of a column: booleans, numbers,
// strings and empty cells. A column holding both numbers and other text is
// widened to a StringField.
type Field interface {
	Add(obj any) (Field, error)
	String() string
}

// Interpret reads cell text as the most specific value it holds: nil for
// blank cells, then a bool, a float64, or the text itself.
func Interpret(text string) any {
	text = strings.TrimSpace(text)
	switch strings.ToLower(text) {
	case "":
		return nil
	case "true":
		return true
	case "false":
		return false
	}
	f, err := strconv.ParseFloat(text, 64)
	if err == nil && !math.IsInf(f, 0) && !math.IsNaN(f) {
		return f
	}
	return text
}

// EmptyField represents a column which is never filled in.
// Adding any object to a EmptyField returns a non-EmptyField.
type EmptyField struct{}

// Add turns the EmptyField into an appropriate field based on the passed type.
func (nf *EmptyField) Add(obj any) (Field, error) {
	switch o := obj.(type) {
	case nil:
		return nf, nil
	case bool:
		return (&BoolField{}).Add(o)
	case float64:
		return (&NumberField{Seen: make(map[float64]int)}).Add(o)
	case string:
		return (&StringField{Seen: make(map[string]int)}).Add(o)
	default:
		return nil, fmt.Errorf("unknown type %T added to %T", o, nf)
	}
}

func (nf *EmptyField) String() string {
	return "empty"
}

// BoolField indicates the column only ever holds "true" or "false".
type BoolField struct {
	True  int
	False int
}

func (f *BoolField) Add(obj any) (Field, error) {
	switch o := obj.(type) {
	case nil:
		return f, nil
	case bool:
		if o {
			f.True++
		} else {
			f.False++
		}
		return f, nil
	case float64, string:
		s := &StringField{Seen: map[string]int{}, Count: f.True + f.False}
		if f.True > 0 {
			s.Seen["true"] = f.True
		}
		if f.False > 0 {
			s.Seen["false"] = f.False
		}
		return s.Add(fmt.Sprint(o))
	default:
		return nil, fmt.Errorf("unknown type %T added to %T", o, f)
	}
}

func (f *BoolField) String() string {
	return fmt.Sprintf("true:%d;false:%d", f.True, f.False)
}

// A NumberField only holds numbers. Keeps track of the properties of the
// numbers passed in to determine the types of numbers used.
type NumberField struct {
	// Integral tracks if all instances of this field are integers.
	Integral bool
	// Float32 tracks if all instances of this field can fit in a 32-bit floating
	// point type. Note that integers greater than about 2^23 cannot fit in
	// 32-bit floats.
	Float32 bool

	// Min and Max allow determining whether the number is unsigned, or, for
	// integers, the smallest type which can hold all seen values.
	Min, Max float64

	// Count is the number of values added.
	Count int

	// Seen tracks the unique numbers passed to this field.
	// Used for detecting if this is an enumerated field where only a few
	// unique values are passed.
	// Stops collecting values after it contains more than MaxEnum entries.
	Seen map[float64]int
}

func (f *NumberField) Add(obj any) (Field, error) {
	switch o := obj.(type) {
	case nil:
		return f, nil
	case float64:
		if f.Count > 0 {
			f.Integral = f.Integral && isIntegral(o)
			f.Float32 = f.Float32 && isFloat32(o)
			f.Min = min(f.Min, o)
			f.Max = max(f.Max, o)
		} else {
			f.Integral = isIntegral(o)
			f.Float32 = isFloat32(o)

			f.Min = o
			f.Max = o
		}
		f.Count++

		if len(f.Seen) <= MaxEnum {
			f.Seen[o]++
		}
		return f, nil
	case bool, string:
		return f.widen().Add(fmt.Sprint(o))
	default:
		return nil, fmt.Errorf("unknown type %T added to %T", o, f)
	}
}

// widen carries the numbers seen so far into a StringField.
func (f *NumberField) widen() *StringField {
	s := &StringField{Seen: make(map[string]int, len(f.Seen)), Count: f.Count}
	for k, v := range f.Seen {
		s.Seen[strconv.FormatFloat(k, 'g', -1, 64)] += v
	}
	return s
}

func isIntegral(f float64) bool {
	return math.Round(f) == f
}

const (
	Float64FractionLength = 52
	Float32FractionLength = 23
	Float64Mask           = (1 << (Float64FractionLength - Float32FractionLength)) - 1
)

func isFloat32(f float64) bool {
	n := math.Float64bits(f)
	n &= Float64Mask

	// The number can be represented as a float32 without loss of precision as
	// it uses none of the float64-specific fraction bits.
	// Does not handle exponents out of the range of float32.
	return n == 0
}

func (f *NumberField) String() string {
	result := strings.Builder{}
	if f.Integral {
		if f.Min < 0 {
			if f.Max <= math.MaxInt8 && f.Min >= math.MinInt8 {
				result.WriteString("int8")
			} else if f.Max <= math.MaxInt16 && f.Min >= math.MinInt16 {
				result.WriteString("int16")
			} else if f.Max <= math.MaxInt32 && f.Min >= math.MinInt32 {
				result.WriteString("int32")
			} else {
				result.WriteString("int64")
			}
		} else {
			if f.Max <= math.MaxUint8 {
				result.WriteString("uint8")
			} else if f.Max <= math.MaxUint16 {
				result.WriteString("uint16")
			} else if f.Max <= math.MaxUint32 {
				result.WriteString("uint32")
			} else {
				result.WriteString("uint64")
			}
		}
	} else {
		if f.Float32 {
			result.WriteString("float32")
		} else {
			result.WriteString("float64")
		}
	}
	result.WriteString(";")
	if f.Integral {
		result.WriteString(fmt.Sprintf("%d;%d;", int(f.Min), int(f.Max)))
	} else {
		result.WriteString(fmt.Sprintf("%f;%f;", f.Min, f.Max))
	}

	if len(f.Seen) <= MaxEnum {
		keys := make([]float64, 0, len(f.Seen))
		for k := range f.Seen {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		for _, k := range keys {
			if f.Integral {
				result.WriteString(fmt.Sprintf("%d:%d;", int(k), f.Seen[k]))
			} else {
				result.WriteString(fmt.Sprintf("%f:%d;", k, f.Seen[k]))
			}
		}
	}

	return result.String()
}

// A StringField holds free text.
type StringField struct {
	// Count is the number of values added.
	Count int
	// Seen attempts to determine if the column is actually an enum with a small
	// number of unique values.
	Seen map[string]int
}

func (f *StringField) Add(obj any) (Field, error) {
	switch o := obj.(type) {
	case nil:
		return f, nil
	case bool, float64:
		return f.Add(fmt.Sprint(o))
	case string:
		f.Count++
		if len(f.Seen) <= MaxEnum {
			f.Seen[o]++
		}
		return f, nil
	default:
		return nil, fmt.Errorf("unknown type %T added to %T", o, f)
	}
}

func (f *StringField) String() string {
	result := strings.Builder{}
	if len(f.Seen) <= MaxEnum {
		result.WriteString(fmt.Sprintf("enum;%d;", len(f.Seen)))
		keys := make([]string, 0, len(f.Seen))
		for k := range f.Seen {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		for _, k := range keys {
			result.WriteString(fmt.Sprintf("%s:%d;", k, f.Seen[k]))
		}
	} else {
		result.WriteString(fmt.Sprintf("string;%d;", f.Count))
	}

	return result.String()
}
