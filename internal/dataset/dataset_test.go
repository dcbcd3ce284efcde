package dataset

import (
	"bytes"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/datacleaner/internal/errs"
)

func TestValueString(t *testing.T) {
	tests := []struct {
		name string
		v    Value
		want string
	}{
		{"null", Null(), ""},
		{"text", Text("a,b"), "a,b"},
		{"int", Int(-42), "-42"},
		{"float", Float(1.5), "1.5"},
		{"integral float", Float(2), "2"},
		{"small float", Float(0.000001), "0.000001"},
		{"bool", Bool(true), "true"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.v.String())
		})
	}
}

func TestValueJoinKey(t *testing.T) {
	k1, ok := Int(1).JoinKey()
	require.True(t, ok)
	k2, _ := Float(1.0).JoinKey()
	assert.Equal(t, k1, k2, "integral float joins with int")

	k3, _ := Text("1").JoinKey()
	assert.NotEqual(t, k1, k3, "text never joins with numbers")

	_, ok = Null().JoinKey()
	assert.False(t, ok)
	_, ok = Float(math.NaN()).JoinKey()
	assert.False(t, ok)

	a, _ := Float(1.25).JoinKey()
	b, _ := Float(1.25).JoinKey()
	assert.Equal(t, a, b)
}

func TestInferColumn(t *testing.T) {
	tests := []struct {
		name string
		raw  []string
		want []Value
	}{
		{"ints", []string{"1", "", "-3"}, []Value{Int(1), Null(), Int(-3)}},
		{"ints promoted to float", []string{"1", "2.5"}, []Value{Float(1), Float(2.5)}},
		{"bools", []string{"TRUE", "false"}, []Value{Bool(true), Bool(false)}},
		{"number with stray text", []string{"1", "n/a"}, []Value{Text("1"), Text("n/a")}},
		{"zip codes keep as ints", []string{"02134"}, []Value{Int(2134)}},
		{"hex is text", []string{"0x1F"}, []Value{Text("0x1F")}},
		{"all empty", []string{"", ""}, []Value{Null(), Null()}},
		{"whitespace is text", []string{" 1"}, []Value{Text(" 1")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := InferColumn(tt.raw)
			require.Len(t, got, len(tt.want))
			for i := range got {
				assert.True(t, tt.want[i].Equal(got[i]), "cell %d: got %v (%s), want %v (%s)",
					i, got[i], got[i].Kind(), tt.want[i], tt.want[i].Kind())
			}
		})
	}
}

func TestUnify(t *testing.T) {
	got := Unify([]Value{Int(1), Float(2.5), Null()})
	assert.Equal(t, KindFloat, got[0].Kind())
	assert.True(t, got[2].IsNull())

	got = Unify([]Value{Int(1), Text("x"), Bool(true)})
	assert.Equal(t, []string{"1", "x", "true"}, []string{got[0].String(), got[1].String(), got[2].String()})
	assert.Equal(t, KindText, got[0].Kind())
}

func TestColumnKindAndComparable(t *testing.T) {
	tests := []struct {
		name string
		vals []Value
		want Kind
	}{
		{"all null", []Value{Null(), Null()}, KindNull},
		{"ints", []Value{Int(1), Null(), Int(2)}, KindInt},
		{"int and float", []Value{Int(1), Float(2.5)}, KindFloat},
		{"inferred with stray text", InferColumn([]string{"1", "2", "X9"}), KindText},
		{"text then int", []Value{Text("a"), Int(1)}, KindText},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ColumnKind(tt.vals))
		})
	}

	assert.True(t, Comparable(KindInt, KindFloat))
	assert.True(t, Comparable(KindNull, KindBool))
	assert.True(t, Comparable(KindText, KindText))
	assert.False(t, Comparable(KindText, KindInt))
	assert.False(t, Comparable(KindBool, KindInt))
}

func TestNewRejectsRaggedRows(t *testing.T) {
	_, err := New([]string{"a", "b"}, [][]Value{{Int(1)}})
	assert.Error(t, err)
}

func TestRename(t *testing.T) {
	d := MustNew([]string{"ID", "Name", "id"}, [][]Value{{Int(1), Text("a"), Int(9)}})
	lower := strings.ToLower

	t.Run("last wins", func(t *testing.T) {
		out, err := d.Rename(lower, LastWins)
		require.NoError(t, err)
		assert.Equal(t, []string{"id", "name"}, out.Names())
		v, _ := out.Column("id")
		assert.Equal(t, "9", v[0].String())
	})

	t.Run("fail on collision", func(t *testing.T) {
		_, err := d.Rename(lower, FailOnCollision)
		require.Error(t, err)
		assert.True(t, errors.Is(err, errs.ErrColumnCollision))
		var ce *errs.CollisionError
		require.True(t, errors.As(err, &ce))
		assert.Equal(t, "id", ce.Name)
		assert.Equal(t, []string{"ID", "id"}, ce.Sources)
	})
}

func TestSelectAndRequire(t *testing.T) {
	d := MustNew([]string{"a", "b", "c"}, [][]Value{{Int(1), Int(2), Int(3)}})

	out, err := d.Select([]string{"c", "a"})
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "a"}, out.Names())
	assert.Equal(t, []Value{Int(3), Int(1)}, out.Row(0))

	_, err = d.Select([]string{"z"})
	assert.Error(t, err)

	assert.Equal(t, []string{"x", "y"}, d.RequireColumns([]string{"a", "x", "y"}))
	assert.Nil(t, d.RequireColumns([]string{"a"}))
}

func TestWriteCSV(t *testing.T) {
	d := MustNew([]string{"a", "b", "c"}, [][]Value{
		{Int(1), Text("x,y"), Null()},
		{Float(2.5), Text("say \"hi\""), Bool(false)},
	})

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, d))
	want := "a,b,c\n1,\"x,y\",\n2.5,\"say \"\"hi\"\"\",false\n"
	assert.Equal(t, want, buf.String())

	var again bytes.Buffer
	require.NoError(t, WriteCSV(&again, d))
	assert.Equal(t, buf.Bytes(), again.Bytes())
}
