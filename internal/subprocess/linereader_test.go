package subprocess

import (
	"io"
	"strings"
	"testing"
)

func TestLineReaderSplitsOnLF(t *testing.T) {
	lr := NewLineReader(strings.NewReader("one\ntwo\nthree"))

	var got []string
	for {
		line, err := lr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		got = append(got, line.Text)
	}
	want := []string{"one", "two", "three"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("line %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestLineReaderTrimsCR(t *testing.T) {
	lr := NewLineReader(strings.NewReader("a\r\nb\r\n"))
	first, err := lr.Next()
	if err != nil || first.Text != "a" {
		t.Fatalf("first = %+v, err = %v", first, err)
	}
	second, err := lr.Next()
	if err != nil || second.Text != "b" {
		t.Fatalf("second = %+v, err = %v", second, err)
	}
}

func TestLineReaderOverflowSplitsPathologicalLine(t *testing.T) {
	huge := strings.Repeat("x", MaxLineBytes+100)
	lr := NewLineReader(strings.NewReader(huge))

	first, err := lr.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if !first.Overflow {
		t.Fatal("expected first chunk to be flagged as overflow")
	}
	if len(first.Text) != MaxLineBytes {
		t.Fatalf("len(first.Text) = %d, want %d", len(first.Text), MaxLineBytes)
	}

	second, err := lr.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if second.Overflow {
		t.Fatal("trailing remainder under the limit should not be flagged as overflow")
	}
}

func TestLineReaderInvalidUTF8IsRepaired(t *testing.T) {
	lr := NewLineReader(strings.NewReader("ok\xffbytes\n"))
	line, err := lr.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if !strings.Contains(line.Text, "�") {
		t.Fatalf("expected replacement character in %q", line.Text)
	}
}

func TestLineReaderEOFOnEmptyStream(t *testing.T) {
	lr := NewLineReader(strings.NewReader(""))
	if _, err := lr.Next(); err != io.EOF {
		t.Fatalf("err = %v, want io.EOF", err)
	}
}
