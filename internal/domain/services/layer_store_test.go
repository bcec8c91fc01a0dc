package services

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/Orelexa/gardrob/internal/domain/entities"
	"github.com/Orelexa/gardrob/internal/domain/valueobjects"
)

// mockTransformer renders deterministic references and records every call.
type mockTransformer struct {
	mu           sync.Mutex
	applyCalls   []valueobjects.ImageRef
	poseCalls    []string
	applyErr     error
	poseErr      error
	applyGate    chan struct{}
	applyEntered chan struct{}
}

func (m *mockTransformer) ApplyGarment(ctx context.Context, base valueobjects.ImageRef, garment *entities.GarmentRef) (valueobjects.ImageRef, error) {
	m.mu.Lock()
	m.applyCalls = append(m.applyCalls, base)
	gate, entered, err := m.applyGate, m.applyEntered, m.applyErr
	m.mu.Unlock()

	if entered != nil {
		entered <- struct{}{}
	}
	if gate != nil {
		<-gate
	}
	if err != nil {
		return "", err
	}
	return valueobjects.ImageRef(fmt.Sprintf("%s+%s", base, garment.ID())), nil
}

func (m *mockTransformer) VaryPose(ctx context.Context, base valueobjects.ImageRef, instruction string) (valueobjects.ImageRef, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.poseCalls = append(m.poseCalls, instruction)
	if m.poseErr != nil {
		return "", m.poseErr
	}
	return valueobjects.ImageRef(fmt.Sprintf("%s@%s", base, instruction)), nil
}

func (m *mockTransformer) poseCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.poseCalls)
}

// mockOutfitRepository stores drafts in memory, optionally failing.
type mockOutfitRepository struct {
	saveErr error
	saved   []*entities.SavedOutfit
}

func (m *mockOutfitRepository) SaveOutfit(ctx context.Context, draft *entities.OutfitDraft) (*entities.SavedOutfit, error) {
	if m.saveErr != nil {
		return nil, m.saveErr
	}
	outfit := draft.Persist(entities.NewSavedOutfitID(), time.Now())
	m.saved = append(m.saved, outfit)
	return outfit, nil
}

func (m *mockOutfitRepository) ListOutfits(ctx context.Context, userID string) ([]*entities.SavedOutfit, error) {
	return m.saved, nil
}

func (m *mockOutfitRepository) FindOutfit(ctx context.Context, userID string, id entities.SavedOutfitID) (*entities.SavedOutfit, error) {
	for _, o := range m.saved {
		if o.ID() == id {
			return o, nil
		}
	}
	return nil, errors.New("not found")
}

func (m *mockOutfitRepository) DeleteOutfit(ctx context.Context, userID string, id entities.SavedOutfitID) error {
	return nil
}

func testGarment(t *testing.T, id string) *entities.GarmentRef {
	t.Helper()
	g, err := entities.NewGarmentRef(entities.GarmentID(id), "Garment "+id, "tops", valueobjects.ImageRef(id+".png"))
	if err != nil {
		t.Fatalf("NewGarmentRef() error = %v", err)
	}
	return g
}

func newInitializedStore(t *testing.T) *LayerStore {
	t.Helper()
	store := NewLayerStore(nil)
	if err := store.Initialize("model_1", "base.png"); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	return store
}

func TestLayerStore_Initialize(t *testing.T) {
	store := newInitializedStore(t)

	if got := store.History().Len(); got != 1 {
		t.Errorf("history length = %d, want 1", got)
	}
	if got := store.DisplayedImage(); got != "base.png" {
		t.Errorf("DisplayedImage() = %q, want base.png", got)
	}
	if got := store.PoseIndex(); got != valueobjects.DefaultPoseIndex {
		t.Errorf("PoseIndex() = %d, want default", got)
	}

	if err := store.Initialize("model_1", ""); !errors.Is(err, ErrValidation) {
		t.Errorf("Initialize(\"\") error = %v, want ErrValidation", err)
	}
}

func TestLayerStore_RequiresModel(t *testing.T) {
	store := NewLayerStore(nil)
	tr := &mockTransformer{}

	if err := store.ApplyGarment(context.Background(), testGarment(t, "g1"), tr); !errors.Is(err, ErrNoModelSelected) {
		t.Errorf("ApplyGarment() error = %v, want ErrNoModelSelected", err)
	}
	if err := store.RemoveLastGarment(); !errors.Is(err, ErrNoModelSelected) {
		t.Errorf("RemoveLastGarment() error = %v, want ErrNoModelSelected", err)
	}
	if got := store.DisplayedImage(); got != "" {
		t.Errorf("DisplayedImage() = %q, want empty", got)
	}
	if _, ok := store.View(); ok {
		t.Errorf("View() reported a model before Initialize")
	}
}

func TestLayerStore_ApplyGarmentUsesDefaultPoseAsBase(t *testing.T) {
	store := newInitializedStore(t)
	tr := &mockTransformer{}
	ctx := context.Background()

	if err := store.SelectPose(ctx, 1, tr); err != nil {
		t.Fatalf("SelectPose() error = %v", err)
	}
	if err := store.ApplyGarment(ctx, testGarment(t, "g1"), tr); err != nil {
		t.Fatalf("ApplyGarment() error = %v", err)
	}

	if tr.applyCalls[0] != "base.png" {
		t.Errorf("transform base = %q, want the default rendering base.png", tr.applyCalls[0])
	}
	if got := store.DisplayedImage(); got != "base.png+g1" {
		t.Errorf("DisplayedImage() = %q, want base.png+g1", got)
	}
	if got := store.PoseIndex(); got != valueobjects.DefaultPoseIndex {
		t.Errorf("PoseIndex() = %d, want default after apply", got)
	}
}

func TestLayerStore_PushPopSymmetry(t *testing.T) {
	store := newInitializedStore(t)
	tr := &mockTransformer{}
	ctx := context.Background()
	initial := store.History()

	for _, id := range []string{"g1", "g2", "g3"} {
		if err := store.ApplyGarment(ctx, testGarment(t, id), tr); err != nil {
			t.Fatalf("ApplyGarment(%s) error = %v", id, err)
		}
	}
	if err := store.SelectPose(ctx, 2, tr); err != nil {
		t.Fatalf("SelectPose() error = %v", err)
	}
	for i := 0; i < 3; i++ {
		if err := store.RemoveLastGarment(); err != nil {
			t.Fatalf("RemoveLastGarment() error = %v", err)
		}
	}

	if !reflect.DeepEqual(store.History(), initial) {
		t.Errorf("history after apply/remove does not match the initial history")
	}
	if got := store.DisplayedImage(); got != "base.png" {
		t.Errorf("DisplayedImage() = %q, want base.png", got)
	}
}

func TestLayerStore_RemoveLastGarmentAtRoot(t *testing.T) {
	store := newInitializedStore(t)
	before := store.History()

	if err := store.RemoveLastGarment(); err != nil {
		t.Fatalf("RemoveLastGarment() error = %v", err)
	}

	after := store.History()
	if after.Len() != 1 {
		t.Errorf("history length = %d, want 1", after.Len())
	}
	if !reflect.DeepEqual(after, before) {
		t.Errorf("history changed on no-op remove")
	}
}

func TestLayerStore_PoseCacheClearedByApply(t *testing.T) {
	store := newInitializedStore(t)
	tr := &mockTransformer{}
	ctx := context.Background()

	if err := store.ApplyGarment(ctx, testGarment(t, "g1"), tr); err != nil {
		t.Fatalf("ApplyGarment() error = %v", err)
	}
	if err := store.SelectPose(ctx, 1, tr); err != nil {
		t.Fatalf("SelectPose() error = %v", err)
	}
	if err := store.ApplyGarment(ctx, testGarment(t, "g2"), tr); err != nil {
		t.Fatalf("ApplyGarment() error = %v", err)
	}
	if err := store.SelectPose(ctx, 1, tr); err != nil {
		t.Fatalf("SelectPose() error = %v", err)
	}

	if got := tr.poseCallCount(); got != 2 {
		t.Errorf("VaryPose calls = %d, want 2 (cache must not survive a new layer)", got)
	}

	pose, _ := store.Catalog().At(1)
	want := valueobjects.ImageRef("base.png+g1+g2@" + pose.Instruction())
	if got := store.DisplayedImage(); got != want {
		t.Errorf("DisplayedImage() = %q, want %q", got, want)
	}
}

func TestLayerStore_SelectPoseIsIdempotent(t *testing.T) {
	store := newInitializedStore(t)
	tr := &mockTransformer{}
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := store.SelectPose(ctx, 3, tr); err != nil {
			t.Fatalf("SelectPose() error = %v", err)
		}
	}
	if got := tr.poseCallCount(); got != 1 {
		t.Errorf("VaryPose calls = %d, want 1", got)
	}

	if err := store.SelectPose(ctx, valueobjects.DefaultPoseIndex, tr); err != nil {
		t.Fatalf("SelectPose(default) error = %v", err)
	}
	if got := tr.poseCallCount(); got != 1 {
		t.Errorf("default pose should never call the transform, got %d calls", got)
	}
	if got := store.DisplayedImage(); got != "base.png" {
		t.Errorf("DisplayedImage() = %q, want base.png", got)
	}
}

func TestLayerStore_SelectPoseValidation(t *testing.T) {
	store := newInitializedStore(t)
	tr := &mockTransformer{}

	for _, index := range []int{-1, store.Catalog().Len()} {
		if err := store.SelectPose(context.Background(), index, tr); !errors.Is(err, ErrValidation) {
			t.Errorf("SelectPose(%d) error = %v, want ErrValidation", index, err)
		}
	}
}

func TestLayerStore_SelectPoseFailureRevertsToDefault(t *testing.T) {
	store := newInitializedStore(t)
	tr := &mockTransformer{}
	ctx := context.Background()

	if err := store.SelectPose(ctx, 1, tr); err != nil {
		t.Fatalf("SelectPose() error = %v", err)
	}

	tr.poseErr = &TransformError{Op: "vary pose", Kind: TransformKindService, Err: errors.New("boom")}
	before := store.History()

	err := store.SelectPose(ctx, 2, tr)
	var te *TransformError
	if !errors.As(err, &te) {
		t.Fatalf("SelectPose() error = %v, want TransformError", err)
	}
	if got := store.PoseIndex(); got != valueobjects.DefaultPoseIndex {
		t.Errorf("PoseIndex() = %d, want default after failure", got)
	}
	if !reflect.DeepEqual(store.History(), before) {
		t.Errorf("history changed after failed pose generation")
	}
}

func TestLayerStore_ApplyFailureLeavesStateUntouched(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantBlocked bool
	}{
		{
			name: "service failure",
			err:  &TransformError{Op: "apply garment", Kind: TransformKindService, Err: errors.New("backend unavailable")},
		},
		{
			name:        "content policy",
			err:         &TransformError{Op: "apply garment", Kind: TransformKindContentPolicy, Err: errors.New("blocked")},
			wantBlocked: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newInitializedStore(t)
			tr := &mockTransformer{}
			ctx := context.Background()

			if err := store.ApplyGarment(ctx, testGarment(t, "g1"), tr); err != nil {
				t.Fatalf("ApplyGarment() error = %v", err)
			}
			if err := store.SelectPose(ctx, 1, tr); err != nil {
				t.Fatalf("SelectPose() error = %v", err)
			}
			before := store.History()
			displayed := store.DisplayedImage()

			tr.applyErr = tt.err
			err := store.ApplyGarment(ctx, testGarment(t, "g2"), tr)
			if err == nil {
				t.Fatalf("Expected error but got none")
			}
			if IsContentBlocked(err) != tt.wantBlocked {
				t.Errorf("IsContentBlocked() = %v, want %v", IsContentBlocked(err), tt.wantBlocked)
			}

			if !reflect.DeepEqual(store.History(), before) {
				t.Errorf("history changed after failed apply")
			}
			if got := store.DisplayedImage(); got != displayed {
				t.Errorf("DisplayedImage() = %q, want %q", got, displayed)
			}
		})
	}
}

func TestLayerStore_RejectsOverlappingOperations(t *testing.T) {
	store := newInitializedStore(t)
	tr := &mockTransformer{
		applyGate:    make(chan struct{}),
		applyEntered: make(chan struct{}, 1),
	}
	ctx := context.Background()

	g1, g2 := testGarment(t, "g1"), testGarment(t, "g2")

	done := make(chan error, 1)
	go func() {
		done <- store.ApplyGarment(ctx, g1, tr)
	}()
	<-tr.applyEntered

	if err := store.ApplyGarment(ctx, g2, tr); !errors.Is(err, ErrOperationInProgress) {
		t.Errorf("overlapping ApplyGarment() error = %v, want ErrOperationInProgress", err)
	}
	if err := store.RemoveLastGarment(); !errors.Is(err, ErrOperationInProgress) {
		t.Errorf("overlapping RemoveLastGarment() error = %v, want ErrOperationInProgress", err)
	}
	if view, _ := store.View(); !view.Busy {
		t.Errorf("View().Busy = false during an operation")
	}
	if got := store.DisplayedImage(); got != "base.png" {
		t.Errorf("reads during an operation should see the committed state, got %q", got)
	}

	close(tr.applyGate)
	if err := <-done; err != nil {
		t.Fatalf("ApplyGarment() error = %v", err)
	}
	if got := store.History().Len(); got != 2 {
		t.Errorf("history length = %d, want 2", got)
	}
}

func TestLayerStore_SaveOutfitRequiresGarment(t *testing.T) {
	store := newInitializedStore(t)
	repo := &mockOutfitRepository{}

	_, err := store.SaveOutfit(context.Background(), "user-1", "Bare", repo)
	if !errors.Is(err, ErrValidation) {
		t.Errorf("SaveOutfit() error = %v, want ErrValidation", err)
	}
	if len(repo.saved) != 0 {
		t.Errorf("repository should not be called for an invalid save")
	}
}

func TestLayerStore_SaveOutfitPersistenceFailure(t *testing.T) {
	store := newInitializedStore(t)
	tr := &mockTransformer{}
	if err := store.ApplyGarment(context.Background(), testGarment(t, "g1"), tr); err != nil {
		t.Fatalf("ApplyGarment() error = %v", err)
	}

	repo := &mockOutfitRepository{saveErr: errors.New("permission denied")}
	_, err := store.SaveOutfit(context.Background(), "user-1", "Look", repo)

	var pe *PersistenceError
	if !errors.As(err, &pe) {
		t.Fatalf("SaveOutfit() error = %v, want PersistenceError", err)
	}
	if store.History().Len() != 2 {
		t.Errorf("history should be unchanged after a failed save")
	}
}

func TestLayerStore_SaveLoadRoundTrip(t *testing.T) {
	store := newInitializedStore(t)
	tr := &mockTransformer{}
	repo := &mockOutfitRepository{}
	ctx := context.Background()

	catalog := map[entities.GarmentID]*entities.GarmentRef{}
	for _, id := range []string{"g1", "g2"} {
		g := testGarment(t, id)
		catalog[g.ID()] = g
		if err := store.ApplyGarment(ctx, g, tr); err != nil {
			t.Fatalf("ApplyGarment(%s) error = %v", id, err)
		}
	}
	if err := store.SelectPose(ctx, 1, tr); err != nil {
		t.Fatalf("SelectPose() error = %v", err)
	}
	preview := store.DisplayedImage()
	garments := store.History().GarmentIDs()

	saved, err := store.SaveOutfit(ctx, "user-1", "  Weekend  ", repo)
	if err != nil {
		t.Fatalf("SaveOutfit() error = %v", err)
	}
	if saved.Name() != "Weekend" {
		t.Errorf("Name() = %q, want trimmed name", saved.Name())
	}
	if saved.Preview() != preview {
		t.Errorf("Preview() = %q, want %q", saved.Preview(), preview)
	}
	for i, l := range saved.Layers() {
		if l.Image() == preview && i != len(saved.Layers())-1 {
			t.Errorf("layer %d persisted a pose variant", i)
		}
	}
	if got := saved.Layers()[2].Image(); got != "base.png+g1+g2" {
		t.Errorf("top layer persisted %q, want the default rendering", got)
	}

	if err := store.Initialize("model_1", "other.png"); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}

	lookup := func(id entities.GarmentID) (*entities.GarmentRef, bool) {
		g, ok := catalog[id]
		return g, ok
	}
	if err := store.LoadOutfit(saved, lookup); err != nil {
		t.Fatalf("LoadOutfit() error = %v", err)
	}

	if got := store.History().GarmentIDs(); !reflect.DeepEqual(got, garments) {
		t.Errorf("GarmentIDs() = %v, want %v", got, garments)
	}
	if got := store.DisplayedImage(); got != preview {
		t.Errorf("DisplayedImage() = %q, want preview %q", got, preview)
	}
	if got := store.PoseIndex(); got != valueobjects.DefaultPoseIndex {
		t.Errorf("PoseIndex() = %d, want default", got)
	}
	if got := len(store.History().Top().Images()); got != 1 {
		t.Errorf("pose variants should not survive a load, got %d images", got)
	}
}

func TestLayerStore_LoadOutfitRefreshesGarments(t *testing.T) {
	store := newInitializedStore(t)
	tr := &mockTransformer{}
	repo := &mockOutfitRepository{}
	ctx := context.Background()

	g1, g2 := testGarment(t, "g1"), testGarment(t, "g2")
	for _, g := range []*entities.GarmentRef{g1, g2} {
		if err := store.ApplyGarment(ctx, g, tr); err != nil {
			t.Fatalf("ApplyGarment() error = %v", err)
		}
	}
	saved, err := store.SaveOutfit(ctx, "user-1", "Look", repo)
	if err != nil {
		t.Fatalf("SaveOutfit() error = %v", err)
	}

	// g1 was renamed after saving; g2 was deleted from the wardrobe.
	renamed := g1.WithName("Renamed").WithCategory("outerwear")
	lookup := func(id entities.GarmentID) (*entities.GarmentRef, bool) {
		if id == g1.ID() {
			return renamed, true
		}
		return nil, false
	}

	if err := store.LoadOutfit(saved, lookup); err != nil {
		t.Fatalf("LoadOutfit() error = %v", err)
	}

	layers := store.History().Layers()
	if got := layers[1].Garment().Name(); got != "Renamed" {
		t.Errorf("layer 1 garment name = %q, want live name", got)
	}
	if got := layers[1].Garment().Category(); got != "outerwear" {
		t.Errorf("layer 1 category = %q, want live category", got)
	}
	if got := layers[2].Garment().Name(); got != g2.Name() {
		t.Errorf("layer 2 garment name = %q, want stored fallback %q", got, g2.Name())
	}
}

func TestLayerStore_ActiveGarmentIDs(t *testing.T) {
	store := newInitializedStore(t)
	tr := &mockTransformer{}
	ctx := context.Background()

	if got := store.ActiveGarmentIDs(); len(got) != 0 {
		t.Errorf("ActiveGarmentIDs() = %v, want empty", got)
	}

	g1 := testGarment(t, "g1")
	for _, g := range []*entities.GarmentRef{g1, testGarment(t, "g2"), g1} {
		if err := store.ApplyGarment(ctx, g, tr); err != nil {
			t.Fatalf("ApplyGarment() error = %v", err)
		}
	}

	want := []entities.GarmentID{"g1", "g2"}
	if got := store.ActiveGarmentIDs(); !reflect.DeepEqual(got, want) {
		t.Errorf("ActiveGarmentIDs() = %v, want %v", got, want)
	}
}
