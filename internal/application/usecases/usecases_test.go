package usecases

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"sync"
	"testing"

	"github.com/Orelexa/gardrob/internal/domain/entities"
	"github.com/Orelexa/gardrob/internal/domain/repositories"
	"github.com/Orelexa/gardrob/internal/domain/services"
	"github.com/Orelexa/gardrob/internal/domain/valueobjects"
	infrarepos "github.com/Orelexa/gardrob/internal/infrastructure/repositories"
)

type mockBlobStore struct {
	mu   sync.Mutex
	puts int
}

func (m *mockBlobStore) Put(ctx context.Context, data []byte, mimeType string) (valueobjects.ImageRef, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.puts++
	return valueobjects.ImageRef(fmt.Sprintf("/blobs/%d.png", m.puts)), nil
}

func (m *mockBlobStore) Open(ctx context.Context, ref valueobjects.ImageRef) (*valueobjects.ImageData, error) {
	return nil, repositories.ErrNotFound
}

func (m *mockBlobStore) Owns(ref valueobjects.ImageRef) bool {
	return false
}

type mockTransformer struct {
	applyErr error
}

func (m *mockTransformer) ApplyGarment(ctx context.Context, base valueobjects.ImageRef, garment *entities.GarmentRef) (valueobjects.ImageRef, error) {
	if m.applyErr != nil {
		return "", m.applyErr
	}
	return base + "+" + valueobjects.ImageRef(garment.ID()), nil
}

func (m *mockTransformer) VaryPose(ctx context.Context, base valueobjects.ImageRef, instruction string) (valueobjects.ImageRef, error) {
	return base + "@" + valueobjects.ImageRef(instruction), nil
}

func (m *mockTransformer) GenerateModel(ctx context.Context, photo *valueobjects.ImageData) (valueobjects.ImageRef, error) {
	return "/blobs/generated.png", nil
}

type mockClassifier struct {
	category string
	err      error
	calls    int
}

func (m *mockClassifier) ClassifyGarment(ctx context.Context, image *valueobjects.ImageData) (string, error) {
	m.calls++
	return m.category, m.err
}

type mockLoader struct {
	fail  map[string]bool
	block bool
}

func (m *mockLoader) Load(ctx context.Context, url string) (string, error) {
	if m.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if m.fail[url] {
		return "", errors.New("fetch failed")
	}
	return "https://cdn.example.com" + url[len("http://localhost:8080"):], nil
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 2, 2))); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

type fixture struct {
	store       *infrarepos.MemoryStore
	blobs       *mockBlobStore
	transformer *mockTransformer
	sessions    *SessionRegistry
	session     *SessionUseCase
	outfits     *OutfitUseCase
	wardrobe    *WardrobeUseCase
	models      *ModelUseCase
}

func newFixture(t *testing.T, classifier repositories.GarmentClassifier) *fixture {
	t.Helper()
	sessions, err := NewSessionRegistry(nil, 0)
	if err != nil {
		t.Fatalf("NewSessionRegistry() error = %v", err)
	}

	f := &fixture{
		store:       infrarepos.NewMemoryStore(),
		blobs:       &mockBlobStore{},
		transformer: &mockTransformer{},
		sessions:    sessions,
	}
	f.session = NewSessionUseCase(sessions, f.store, f.store, f.transformer, nil)
	f.outfits = NewOutfitUseCase(sessions, f.store, f.store, nil)
	f.wardrobe = NewWardrobeUseCase(f.store, f.blobs, classifier, nil)
	f.models = NewModelUseCase(f.store, f.blobs, f.transformer, nil)
	return f
}

func (f *fixture) addModel(t *testing.T, userID string) *entities.Model {
	t.Helper()
	model, err := f.models.Create(context.Background(), CreateModelInput{UserID: userID, Name: "Me", PhotoData: pngBytes(t)})
	if err != nil {
		t.Fatalf("create model: %v", err)
	}
	return model
}

func (f *fixture) addGarment(t *testing.T, userID, name string) *entities.WardrobeItem {
	t.Helper()
	item, err := f.wardrobe.Create(context.Background(), CreateGarmentInput{
		UserID: userID, Name: name, Category: "tops", ImageData: pngBytes(t),
	})
	if err != nil {
		t.Fatalf("create garment: %v", err)
	}
	return item
}

func TestSessionUseCase_Flow(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	model := f.addModel(t, "user-1")
	shirt := f.addGarment(t, "user-1", "Shirt")

	out := f.session.View("user-1")
	if out.Ready {
		t.Fatal("new session should not be ready")
	}

	if _, err := f.session.ApplyGarment(ctx, "user-1", shirt.ID()); !errors.Is(err, services.ErrNoModelSelected) {
		t.Fatalf("ApplyGarment() without model error = %v", err)
	}

	out, err := f.session.SelectModel(ctx, "user-1", model.ID())
	if err != nil {
		t.Fatalf("SelectModel() error = %v", err)
	}
	if out.View.DisplayedImage != model.ModelImage() {
		t.Errorf("DisplayedImage = %q, want %q", out.View.DisplayedImage, model.ModelImage())
	}

	out, err = f.session.ApplyGarment(ctx, "user-1", shirt.ID())
	if err != nil {
		t.Fatalf("ApplyGarment() error = %v", err)
	}
	if len(out.View.Layers) != 2 {
		t.Fatalf("layers = %d, want 2", len(out.View.Layers))
	}

	out, err = f.session.SelectPose(ctx, "user-1", 2)
	if err != nil {
		t.Fatalf("SelectPose() error = %v", err)
	}
	if out.View.PoseIndex != 2 {
		t.Errorf("PoseIndex = %d, want 2", out.View.PoseIndex)
	}

	out, err = f.session.RemoveLastGarment("user-1")
	if err != nil {
		t.Fatalf("RemoveLastGarment() error = %v", err)
	}
	if len(out.View.Layers) != 1 || out.View.PoseIndex != 0 {
		t.Errorf("after remove: layers = %d, pose = %d", len(out.View.Layers), out.View.PoseIndex)
	}
}

func TestSessionUseCase_NotFound(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	model := f.addModel(t, "user-1")

	if _, err := f.session.SelectModel(ctx, "user-2", model.ID()); !errors.Is(err, repositories.ErrNotFound) {
		t.Errorf("SelectModel() for other user error = %v, want ErrNotFound", err)
	}
	if _, err := f.session.ApplyGarment(ctx, "user-1", "garment_missing"); !errors.Is(err, repositories.ErrNotFound) {
		t.Errorf("ApplyGarment() missing garment error = %v, want ErrNotFound", err)
	}
	if _, err := f.session.SelectModel(ctx, "user-1", ""); !errors.Is(err, services.ErrValidation) {
		t.Errorf("SelectModel() empty id error = %v, want ErrValidation", err)
	}
}

func TestSessionUseCase_TransformFailureKeepsState(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	model := f.addModel(t, "user-1")
	shirt := f.addGarment(t, "user-1", "Shirt")

	if _, err := f.session.SelectModel(ctx, "user-1", model.ID()); err != nil {
		t.Fatal(err)
	}
	f.transformer.applyErr = &services.TransformError{Op: "apply garment", Kind: services.TransformKindQuota, Err: errors.New("429")}

	if _, err := f.session.ApplyGarment(ctx, "user-1", shirt.ID()); err == nil {
		t.Fatal("ApplyGarment() expected error")
	}
	if got := len(f.session.View("user-1").View.Layers); got != 1 {
		t.Errorf("layers after failure = %d, want 1", got)
	}
}

func TestOutfitUseCase_SaveLoad(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	model := f.addModel(t, "user-1")
	shirt := f.addGarment(t, "user-1", "Shirt")
	jacket := f.addGarment(t, "user-1", "Jacket")

	if _, err := f.outfits.Save(ctx, "user-1", "Empty"); !errors.Is(err, services.ErrNoModelSelected) {
		t.Fatalf("Save() without model error = %v", err)
	}

	if _, err := f.session.SelectModel(ctx, "user-1", model.ID()); err != nil {
		t.Fatal(err)
	}
	if _, err := f.outfits.Save(ctx, "user-1", "Bare"); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("Save() with only the model error = %v, want ErrValidation", err)
	}

	for _, id := range []entities.GarmentID{shirt.ID(), jacket.ID()} {
		if _, err := f.session.ApplyGarment(ctx, "user-1", id); err != nil {
			t.Fatal(err)
		}
	}
	want := f.session.View("user-1").View.DisplayedImage

	saved, err := f.outfits.Save(ctx, "user-1", "Layered")
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	renamed := "Denim jacket"
	if _, err := f.wardrobe.Update(ctx, UpdateGarmentInput{UserID: "user-1", ID: jacket.ID(), Name: &renamed}); err != nil {
		t.Fatal(err)
	}
	if err := f.wardrobe.Delete(ctx, "user-1", shirt.ID()); err != nil {
		t.Fatal(err)
	}

	if _, err := f.session.RemoveLastGarment("user-1"); err != nil {
		t.Fatal(err)
	}
	loaded, err := f.outfits.Load(ctx, "user-1", saved.ID())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	view := loaded.View
	if current := f.session.View("user-1").View; current.DisplayedImage != view.DisplayedImage {
		t.Errorf("session view = %q, want the loaded outfit", current.DisplayedImage)
	}
	if view.DisplayedImage != want {
		t.Errorf("DisplayedImage = %q, want %q", view.DisplayedImage, want)
	}
	if len(view.Layers) != 3 {
		t.Fatalf("layers = %d, want 3", len(view.Layers))
	}
	if got := view.Layers[1].Garment().Name(); got != "Shirt" {
		t.Errorf("deleted garment should use stored copy, got %q", got)
	}
	if got := view.Layers[2].Garment().Name(); got != renamed {
		t.Errorf("live garment name = %q, want %q", got, renamed)
	}

	list, err := f.outfits.List(ctx, "user-1")
	if err != nil || len(list) != 1 {
		t.Fatalf("List() = %d outfits, err %v", len(list), err)
	}
	if err := f.outfits.Delete(ctx, "user-1", saved.ID()); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := f.outfits.Load(ctx, "user-1", saved.ID()); !errors.Is(err, repositories.ErrNotFound) {
		t.Errorf("Load() after delete error = %v, want ErrNotFound", err)
	}
}

func TestWardrobeUseCase_Create(t *testing.T) {
	tests := []struct {
		name         string
		input        CreateGarmentInput
		classifier   *mockClassifier
		wantCategory string
		wantErr      error
	}{
		{
			name:         "explicit category skips classifier",
			input:        CreateGarmentInput{UserID: "u", Name: "Tee", Category: "tops"},
			classifier:   &mockClassifier{category: "shoes"},
			wantCategory: "tops",
		},
		{
			name:         "blank category is suggested",
			input:        CreateGarmentInput{UserID: "u", Name: "Boots"},
			classifier:   &mockClassifier{category: "shoes"},
			wantCategory: "shoes",
		},
		{
			name:         "classifier failure leaves category empty",
			input:        CreateGarmentInput{UserID: "u", Name: "Scarf"},
			classifier:   &mockClassifier{err: errors.New("unavailable")},
			wantCategory: "",
		},
		{
			name:       "missing name",
			input:      CreateGarmentInput{UserID: "u"},
			classifier: &mockClassifier{},
			wantErr:    services.ErrValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.classifier)
			tt.input.ImageData = pngBytes(t)

			item, err := f.wardrobe.Create(context.Background(), tt.input)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Create() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Create() error = %v", err)
			}
			if got := item.Garment().Category(); got != tt.wantCategory {
				t.Errorf("category = %q, want %q", got, tt.wantCategory)
			}
		})
	}
}

func TestWardrobeUseCase_RejectsInvalidImage(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.wardrobe.Create(context.Background(), CreateGarmentInput{UserID: "u", Name: "Tee", ImageData: []byte("nope")})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("Create() error = %v, want ErrValidation", err)
	}
	if f.blobs.puts != 0 {
		t.Errorf("invalid images must not be stored, puts = %d", f.blobs.puts)
	}
}

func TestPrefetchUseCase(t *testing.T) {
	f := newFixture(t, nil)
	ok := f.addGarment(t, "user-1", "Shirt")
	bad := f.addGarment(t, "user-1", "Pants")

	loader := &mockLoader{fail: map[string]bool{"http://localhost:8080" + bad.Garment().Image().String(): true}}
	uc := NewPrefetchUseCase(f.store, loader, "http://localhost:8080/", nil)

	results, err := uc.Execute(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("results = %d, want 2", len(results))
	}

	byID := map[entities.GarmentID]PrefetchResult{}
	for _, r := range results {
		byID[r.GarmentID] = r
	}

	if r := byID[ok.ID()]; !r.Loaded || r.URL != "https://cdn.example.com"+ok.Garment().Image().String() {
		t.Errorf("loaded result = %+v", r)
	}
	if r := byID[bad.ID()]; r.Loaded || r.URL != "http://localhost:8080"+bad.Garment().Image().String() {
		t.Errorf("failed result should fall back to original url, got %+v", r)
	}
}

func TestPrefetchUseCase_Cancelled(t *testing.T) {
	f := newFixture(t, nil)
	f.addGarment(t, "user-1", "Shirt")
	f.addGarment(t, "user-1", "Pants")

	uc := NewPrefetchUseCase(f.store, &mockLoader{block: true}, "http://localhost:8080", nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results, err := uc.Execute(ctx, "user-1")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Execute() error = %v, want context.Canceled", err)
	}
	if results != nil {
		t.Errorf("cancelled prefetch should not return results, got %+v", results)
	}
}

func TestSessionRegistry_Eviction(t *testing.T) {
	registry, err := NewSessionRegistry(nil, 2)
	if err != nil {
		t.Fatal(err)
	}

	first := registry.Get("a")
	if registry.Get("a") != first {
		t.Error("Get() should return the same session for a user")
	}
	registry.Get("b")
	registry.Get("c")

	if registry.Len() != 2 {
		t.Errorf("Len() = %d, want 2", registry.Len())
	}
	if registry.Get("a") == first {
		t.Error("least recently used session should be evicted")
	}
}

type evictingWardrobe struct {
	repositories.WardrobeRepository
	evict func()
}

func (w *evictingWardrobe) ListItems(ctx context.Context, userID string) ([]*entities.WardrobeItem, error) {
	w.evict()
	return w.WardrobeRepository.ListItems(ctx, userID)
}

func TestOutfitUseCase_LoadSurvivesEviction(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	model := f.addModel(t, "user-1")
	shirt := f.addGarment(t, "user-1", "Shirt")

	if _, err := f.session.SelectModel(ctx, "user-1", model.ID()); err != nil {
		t.Fatal(err)
	}
	if _, err := f.session.ApplyGarment(ctx, "user-1", shirt.ID()); err != nil {
		t.Fatal(err)
	}
	saved, err := f.outfits.Save(ctx, "user-1", "Casual")
	if err != nil {
		t.Fatal(err)
	}

	registry, err := NewSessionRegistry(nil, 1)
	if err != nil {
		t.Fatal(err)
	}
	wardrobe := &evictingWardrobe{
		WardrobeRepository: f.store,
		evict:              func() { registry.Get("user-2") },
	}
	outfits := NewOutfitUseCase(registry, f.store, wardrobe, nil)

	out, err := outfits.Load(ctx, "user-1", saved.ID())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !out.Ready || len(out.View.Layers) != 2 {
		t.Fatalf("Load() should report the loaded outfit, got ready=%v layers=%d", out.Ready, len(out.View.Layers))
	}
	if out.View.DisplayedImage != saved.Preview() {
		t.Errorf("DisplayedImage = %q, want %q", out.View.DisplayedImage, saved.Preview())
	}

	if _, ready := registry.Get("user-1").View(); ready {
		t.Error("user-1 should have been evicted while loading")
	}
}
