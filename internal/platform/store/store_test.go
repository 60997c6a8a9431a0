package store

import (
	"context"
	"errors"
	"testing"

	perr "landpulse/internal/platform/errors"
)

type fakeRows struct {
	vals [][]any
	i    int
	err  error
}

func (r *fakeRows) Next() bool { r.i++; return r.i <= len(r.vals) }
func (r *fakeRows) Scan(dest ...any) error {
	row := r.vals[r.i-1]
	for i := range dest {
		switch d := dest[i].(type) {
		case *string:
			*d = row[i].(string)
		case *int:
			*d = row[i].(int)
		}
	}
	return nil
}
func (r *fakeRows) Err() error { return r.err }
func (r *fakeRows) Close()     {}

type fakeTag int64

func (t fakeTag) String() string      { return "UPDATE" }
func (t fakeTag) RowsAffected() int64 { return int64(t) }

type fakeQ struct {
	rows     [][]any
	affected int64
	err      error
}

func (f fakeQ) Exec(context.Context, string, ...any) (CommandTag, error) {
	return fakeTag(f.affected), f.err
}
func (f fakeQ) Query(context.Context, string, ...any) (Rows, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &fakeRows{vals: f.rows}, nil
}
func (f fakeQ) QueryRow(context.Context, string, ...any) Row {
	return &fakeRows{vals: f.rows, i: 1}
}

func scanName(r Row) (string, error) {
	var s string
	err := r.Scan(&s)
	return s, err
}

func TestOne(t *testing.T) {
	ctx := context.Background()

	got, err := One(ctx, fakeQ{rows: [][]any{{"Bidhannagar"}}}, scanName, "q")
	if err != nil || got != "Bidhannagar" {
		t.Fatalf("One = %q, %v", got, err)
	}

	_, err = One(ctx, fakeQ{}, scanName, "q")
	if !perr.IsCode(err, perr.ErrorCodeNotFound) {
		t.Fatalf("empty result should be not found, got %v", err)
	}

	_, err = One(ctx, fakeQ{rows: [][]any{{"a"}, {"b"}}}, scanName, "q")
	if err == nil {
		t.Fatal("expected error for multiple rows")
	}
}

func TestMany(t *testing.T) {
	got, err := Many(context.Background(), fakeQ{rows: [][]any{{"a"}, {"b"}, {"c"}}}, scanName, "q")
	if err != nil || len(got) != 3 || got[2] != "c" {
		t.Fatalf("Many = %v, %v", got, err)
	}
}

func TestScalar(t *testing.T) {
	got, err := Scalar[int](context.Background(), fakeQ{rows: [][]any{{42}}}, "q")
	if err != nil || got != 42 {
		t.Fatalf("Scalar = %d, %v", got, err)
	}
}

func TestExecOne(t *testing.T) {
	ctx := context.Background()
	if err := ExecOne(ctx, fakeQ{affected: 1}, "u"); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if err := ExecOne(ctx, fakeQ{affected: 0}, "u"); !perr.IsCode(err, perr.ErrorCodeNotFound) {
		t.Fatalf("zero rows should be not found, got %v", err)
	}
	boom := errors.New("boom")
	if err := ExecOne(ctx, fakeQ{err: boom}, "u"); !errors.Is(err, boom) {
		t.Fatalf("want boom, got %v", err)
	}
}

type fakeCH struct {
	pingErr error
	closed  bool
}

func (f *fakeCH) Insert(context.Context, string, []string, [][]any) error { return nil }
func (f *fakeCH) Ping(context.Context) error                             { return f.pingErr }
func (f *fakeCH) Close() error                                           { f.closed = true; return nil }

func TestGuardAndClose(t *testing.T) {
	ctx := context.Background()

	var nilStore *Store
	if err := nilStore.Guard(ctx); err == nil {
		t.Fatal("nil store should fail guard")
	}

	if err := (&Store{}).Guard(ctx); err != nil {
		t.Fatalf("empty store should pass guard: %v", err)
	}

	ch := &fakeCH{pingErr: errors.New("down")}
	s := &Store{CH: ch}
	if err := s.Guard(ctx); err == nil {
		t.Fatal("expected guard failure")
	}
	if err := s.Close(ctx); err != nil || !ch.closed {
		t.Fatalf("close: err=%v closed=%v", err, ch.closed)
	}
}

func TestOpen_NoBackends(t *testing.T) {
	s, err := Open(context.Background(), Config{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if s.PG != nil || s.CH != nil {
		t.Fatal("backends should be nil when disabled")
	}
}
