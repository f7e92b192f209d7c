package values

import "testing"

func TestEqual_CrossKindAlwaysFalse(t *testing.T) {
	if Equal(Int(0), Bool(false)) {
		t.Fatal("expected Int(0) and Bool(false) to compare unequal")
	}
}

func TestEqual_FloatNaNNeverEqual(t *testing.T) {
	nan := Float(nan())
	if Equal(nan, nan) {
		t.Fatal("expected NaN to never equal itself")
	}
}

func TestEqual_SignedZeroCompareEqual(t *testing.T) {
	if !Equal(Float(0.0), Float(negZero())) {
		t.Fatal("expected +0.0 and -0.0 to compare equal")
	}
}

func TestEqual_ObjectIgnoresFieldOrder(t *testing.T) {
	a := Object([]ObjectField{{Key: "x", Value: Int(1)}, {Key: "y", Value: Int(2)}})
	b := Object([]ObjectField{{Key: "y", Value: Int(2)}, {Key: "x", Value: Int(1)}})
	if !Equal(a, b) {
		t.Fatal("expected objects with same fields in different order to be equal")
	}
}

func TestValue_GetMissingField(t *testing.T) {
	obj := Object([]ObjectField{{Key: "a", Value: Int(1)}})
	_, ok := obj.Get("b")
	if ok {
		t.Fatal("expected missing field lookup to report not found")
	}
}

func TestValue_WithFieldReplacesExisting(t *testing.T) {
	obj := Object([]ObjectField{{Key: "a", Value: Int(1)}})
	updated := obj.WithField("a", Int(2))
	v, _ := updated.Get("a")
	n, _ := v.AsInt()
	if n != 2 {
		t.Fatalf("got %d, want 2", n)
	}
	fields, _ := updated.AsObject()
	if len(fields) != 1 {
		t.Fatalf("got %d fields, want 1 (replace, not append)", len(fields))
	}
}

func TestValue_WithoutFieldRemoves(t *testing.T) {
	obj := Object([]ObjectField{{Key: "a", Value: Int(1)}, {Key: "b", Value: Int(2)}})
	updated := obj.WithoutField("a")
	if _, ok := updated.Get("a"); ok {
		t.Fatal("expected field a to be removed")
	}
	if _, ok := updated.Get("b"); !ok {
		t.Fatal("expected field b to remain")
	}
}

func TestIsNegativeZero(t *testing.T) {
	if !IsNegativeZero(negZero()) {
		t.Fatal("expected -0.0 to be detected as negative zero")
	}
	if IsNegativeZero(0.0) {
		t.Fatal("expected +0.0 to not be detected as negative zero")
	}
}

func nan() float64     { var z float64; return z / z }
func negZero() float64 { var z float64; return -z }
