package memory

import "testing"

func TestValueKinds(t *testing.T) {
	cases := []struct {
		value Value
		kind  ValueKind
		name  string
	}{
		{IntValue(42), KindInt, "Int"},
		{FloatValue(3.14), KindFloat, "Float"},
		{StringValue("hi"), KindString, "String"},
		{StructValue{"x": IntValue(1)}, KindStruct, "Struct"},
		{NewPointer(0x1000, "int"), KindPointer, "Pointer"},
	}

	for _, c := range cases {
		if c.value.Kind() != c.kind {
			t.Errorf("Expected kind %v, got %v", c.kind, c.value.Kind())
		}
		if c.value.Kind().String() != c.name {
			t.Errorf("Expected kind name %q, got %q", c.name, c.value.Kind().String())
		}
	}
}

func TestValueEqualityIsKindStrict(t *testing.T) {
	if IntValue(1).Equal(FloatValue(1)) {
		t.Error("Int and Float values should never be equal")
	}
	if !IntValue(7).Equal(IntValue(7)) {
		t.Error("Expected equal integers to compare equal")
	}
	if IntValue(7).Equal(IntValue(8)) {
		t.Error("Expected unequal integers to compare unequal")
	}
}

func TestStructValueEquality(t *testing.T) {
	a := StructValue{"x": IntValue(1), "y": StructValue{"z": StringValue("s")}}
	b := StructValue{"x": IntValue(1), "y": StructValue{"z": StringValue("s")}}
	c := StructValue{"x": IntValue(1), "y": StructValue{"z": StringValue("t")}}

	if !a.Equal(b) {
		t.Error("Expected structurally identical struct values to be equal")
	}
	if a.Equal(c) {
		t.Error("Expected struct values with different nested fields to be unequal")
	}
	if a.Equal(StructValue{"x": IntValue(1)}) {
		t.Error("Expected struct values with different field sets to be unequal")
	}
}

func TestPointerEquality(t *testing.T) {
	p1 := NewPointer(0x1000, "int")
	p2 := NewPointer(0x1000, "char")
	p3 := NewPointer(0x2000, "int")

	if !p1.Equal(p2) {
		t.Error("Pointers to the same address should be equal regardless of target type")
	}
	if p1.Equal(p3) {
		t.Error("Pointers to different addresses should not be equal")
	}

	n1 := NullPointer("int")
	n2 := NullPointer("char")
	if !n1.Equal(n2) {
		t.Error("Null pointers should be equal regardless of target type")
	}
	if n1.Equal(p1) || p1.Equal(n1) {
		t.Error("A null pointer should never equal a non-null pointer")
	}
}

func TestStructValueCopyIsDeep(t *testing.T) {
	original := StructValue{"inner": StructValue{"n": IntValue(1)}}
	copied := original.Copy().(StructValue)

	copied["inner"].(StructValue)["n"] = IntValue(99)

	if got := original["inner"].(StructValue)["n"]; !got.Equal(IntValue(1)) {
		t.Errorf("Expected original nested value 1 after mutating copy, got %v", got)
	}
}

func TestValueStrings(t *testing.T) {
	cases := []struct {
		value Value
		want  string
	}{
		{IntValue(-3), "-3"},
		{FloatValue(2.5), "2.5"},
		{StringValue("hi"), `"hi"`},
		{NewPointer(0x1000, "int"), "-> 0x1000"},
		{NullPointer("int"), "NULL"},
		{StructValue{"b": IntValue(2), "a": IntValue(1)}, "{a: 1, b: 2}"},
	}

	for _, c := range cases {
		if got := c.value.String(); got != c.want {
			t.Errorf("Expected %q, got %q", c.want, got)
		}
	}
}
