package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKey(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"", ""},
		{"   ", ""},
		{"ACME", "acme"},
		{"  Acme   Corp ", "acme corp"},
		{"ACME A.Ş.", "acme a.ş."},
		{"İSTANBUL OFİS", "istanbul ofis"},
		{"Çağrı ÖZGÜR", "çağri özgür"},
		{"tab\tand\nnewline", "tab and newline"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Key(tt.input), "Key(%q)", tt.input)
	}
}

func TestKey_CaseAndWhitespaceCollide(t *testing.T) {
	pairs := [][2]string{
		{"ACME A.Ş.", "acme a.ş."},
		{"Office  Rent", " office rent "},
		{"İNTERNET", "internet"},
		{"GÜNEŞ ENERJİ", "güneş enerji"},
		{"ISPARTA", "ısparta"},
		{"Isparta", "İsparta"},
		{"HOOLI", "hooli"},
	}
	for _, p := range pairs {
		assert.True(t, Same(p[0], p[1]), "%q vs %q", p[0], p[1])
	}
}

func TestKey_OtherDifferencesStayDistinct(t *testing.T) {
	pairs := [][2]string{
		{"acme a.ş.", "acme a.s."},
		{"acme", "acme."},
		{"office rent", "officerent"},
		{"güneş", "gunes"},
		{"acme 1", "acme 2"},
	}
	for _, p := range pairs {
		assert.False(t, Same(p[0], p[1]), "%q vs %q", p[0], p[1])
	}
}

func TestKey_Idempotent(t *testing.T) {
	inputs := []string{"ACME A.Ş.", "  İzmir   Şube ", "already normal", "MiXeD\tCase", ""}
	for _, in := range inputs {
		once := Key(in)
		assert.Equal(t, once, Key(once), "Key not idempotent for %q", in)
	}
}

func TestKey_TurkishIFormsFoldToOne(t *testing.T) {
	for _, in := range []string{"ISPARTA", "İSPARTA", "ısparta", "isparta", "Isparta"} {
		assert.Equal(t, "isparta", Key(in), "Key(%q)", in)
	}
}
