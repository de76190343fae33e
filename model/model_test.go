// model_test.go - Unit Tests fuer Registry, Reflection-Tags und Forward
//
// Testet die Modell-Registry samt Architektur-Vorschlaegen, das Parsen
// der gguf-Struct-Tags und den Forward-Wrapper mit synthetischen
// Modellen.
package model

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"os"
	"reflect"
	"slices"
	"strings"
	"testing"

	"github.com/hybridvit/hybridvit/fs"
	fsggml "github.com/hybridvit/hybridvit/fs/ggml"
	"github.com/hybridvit/hybridvit/ml"
)

// fakeVision ist ein minimales Bild-Modell fuer Registry-Tests
type fakeVision struct {
	Base

	Weight ml.Tensor `gguf:"w"`
}

func (m *fakeVision) Forward(ctx ml.Context, batch ImageBatch) (ml.Tensor, error) {
	return batch.Pixels, nil
}

// plainModel verarbeitet keine Bild-Eingabe
type plainModel struct {
	Base
}

var errBrokenModel = errors.New("broken test model")

// brokenModel schlaegt bei der Post-Load-Validierung fehl
type brokenModel struct {
	Base
}

func (m *brokenModel) Forward(ml.Context, ImageBatch) (ml.Tensor, error) {
	return nil, nil
}

func (m *brokenModel) Validate() error {
	return errBrokenModel
}

func init() {
	Register("fake-vision", func(fs.Config) (Model, error) { return &fakeVision{}, nil })
	Register("fake-broken", func(fs.Config) (Model, error) { return &brokenModel{}, nil })
	Register("duplicate-arch", func(fs.Config) (Model, error) { return &plainModel{}, nil })
}

// writeTestFile schreibt ein minimales GGUF-Modell und gibt den Pfad zurueck
func writeTestFile(t *testing.T, arch string, tensors map[string][]float32) string {
	t.Helper()

	f, err := os.CreateTemp(t.TempDir(), "*.gguf")
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	ts := make([]*fsggml.Tensor, 0, len(tensors))
	for name, data := range tensors {
		var b bytes.Buffer
		if err := binary.Write(&b, binary.LittleEndian, data); err != nil {
			t.Fatal(err)
		}

		ts = append(ts, &fsggml.Tensor{
			Name:     name,
			Kind:     uint32(fsggml.TensorTypeF32),
			Shape:    []uint64{uint64(len(data))},
			WriterTo: bytes.NewReader(b.Bytes()),
		})
	}

	if err := fsggml.WriteGGUF(f, fsggml.KV{"general.architecture": arch}, ts); err != nil {
		t.Fatal(err)
	}

	return f.Name()
}

func TestNewPopulatesModel(t *testing.T) {
	path := writeTestFile(t, "fake-vision", map[string][]float32{"w": {1, 2, 3}})

	m, err := New(path, ml.BackendParams{NumThreads: 1})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(m.Backend().Close)

	fv, ok := m.(*fakeVision)
	if !ok {
		t.Fatalf("Modelltyp = %T, erwartet *fakeVision", m)
	}
	if fv.Backend() == nil {
		t.Fatal("Backend wurde nicht gesetzt")
	}
	if fv.Weight == nil {
		t.Fatal("Tensor w wurde nicht gesetzt")
	}
}

func TestNewUnknownArchitecture(t *testing.T) {
	path := writeTestFile(t, "fake-vison", map[string][]float32{"w": {1}})

	_, err := New(path, ml.BackendParams{NumThreads: 1})
	if !errors.Is(err, ErrUnsupportedModel) {
		t.Fatalf("err = %v, erwartet ErrUnsupportedModel", err)
	}

	// Der Tippfehler liegt eine Edit-Distanz neben fake-vision
	if !strings.Contains(err.Error(), `"fake-vision"`) {
		t.Errorf("err = %v, erwartet Vorschlag fake-vision", err)
	}
}

func TestNewValidateFails(t *testing.T) {
	path := writeTestFile(t, "fake-broken", map[string][]float32{"w": {1}})

	_, err := New(path, ml.BackendParams{NumThreads: 1})
	if !errors.Is(err, errBrokenModel) {
		t.Fatalf("err = %v, erwartet Validierungsfehler", err)
	}
}

func TestRegisterDuplicatePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("doppelte Registrierung muss panicken")
		}
	}()

	Register("duplicate-arch", func(fs.Config) (Model, error) { return &plainModel{}, nil })
}

func TestClosestArch(t *testing.T) {
	cases := []struct {
		arch, want string
	}{
		{"fake-vision", "fake-vision"},
		{"fake-vison", "fake-vision"},
		{"fake-brokn", "fake-broken"},
		{"0123456789zz", ""},
	}

	for _, tc := range cases {
		if got := closestArch(tc.arch); got != tc.want {
			t.Errorf("closestArch(%q) = %q, erwartet %q", tc.arch, got, tc.want)
		}
	}
}

func TestParseTag(t *testing.T) {
	cases := []struct {
		in   string
		want Tag
	}{
		{"weight", Tag{name: "weight"}},
		{"attn_q,alt:attn_wq", Tag{name: "attn_q", alternatives: []string{"attn_wq"}}},
		{"blk,pre:v.", Tag{name: "blk", prefix: "v."}},
		{"out,alt:head,suf:_w", Tag{name: "out", alternatives: []string{"head"}, suffix: "_w"}},
		{",alt:kernel", Tag{name: "kernel"}},
	}

	for _, tc := range cases {
		if got := parseTag(tc.in); !reflect.DeepEqual(got, tc.want) {
			t.Errorf("parseTag(%q) = %+v, erwartet %+v", tc.in, got, tc.want)
		}
	}
}

func TestBuildTensorNames(t *testing.T) {
	cases := []struct {
		name string
		tags []Tag
		want []string
	}{
		{
			name: "einfach",
			tags: []Tag{{name: "v"}, {name: "patch_embd"}, {name: "weight"}},
			want: []string{"v.patch_embd.weight"},
		},
		{
			name: "alternativen",
			tags: []Tag{{name: "attn_q", alternatives: []string{"attn_wq"}}, {name: "weight"}},
			want: []string{"attn_q.weight", "attn_wq.weight"},
		},
		{
			name: "prefix fuer Kind-Tags",
			tags: []Tag{{name: "blk", prefix: "l."}, {name: "0"}, {name: "bias"}},
			want: []string{"blk.l.0.bias"},
		},
		{
			name: "leerer Kopf",
			tags: []Tag{{name: ""}, {name: "w"}},
			want: []string{"w"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var got []string
			for _, parts := range buildTensorNames(tc.tags, "", "") {
				got = append(got, strings.Join(parts, "."))
			}

			if !slices.Equal(got, tc.want) {
				t.Errorf("Namen = %v, erwartet %v", got, tc.want)
			}
		})
	}
}

func TestForwardNoVisionModel(t *testing.T) {
	_, err := Forward(nil, &plainModel{}, ImageBatch{})
	if !errors.Is(err, ErrNoVisionModel) {
		t.Fatalf("err = %v, erwartet ErrNoVisionModel", err)
	}
}

func TestForwardRequiresPixels(t *testing.T) {
	_, err := Forward(nil, &fakeVision{}, ImageBatch{})
	if err == nil || !strings.Contains(err.Error(), "pixels") {
		t.Fatalf("err = %v, erwartet Pixel-Fehler", err)
	}
}

func TestForwardPassesBatch(t *testing.T) {
	path := writeTestFile(t, "fake-vision", map[string][]float32{"w": {1, 2, 3}})

	m, err := New(path, ml.BackendParams{NumThreads: 1})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(m.Backend().Close)

	if err := m.Backend().Load(context.Background(), nil); err != nil {
		t.Fatal(err)
	}

	ctx := m.Backend().NewContext()
	pixels := ctx.FromFloats([]float32{0.5, -0.5, 1, 0}, 2, 2, 1, 1)

	out, err := Forward(ctx, m, ImageBatch{Pixels: pixels})
	if err != nil {
		t.Fatal(err)
	}

	if got := out.Floats(); !slices.Equal(got, []float32{0.5, -0.5, 1, 0}) {
		t.Errorf("Ausgabe = %v, erwartet Eingabe-Pixel", got)
	}
}
