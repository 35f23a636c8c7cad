package repository

import (
	"errors"
	"sync"
	"testing"

	"github.com/mkardel/photoscope/media"
	"github.com/mkardel/photoscope/models"
)

func boxOf(f models.Face) media.Box {
	return media.Box{Top: f.Top, Right: f.Right, Bottom: f.Bottom, Left: f.Left}
}

func seedImageWithFaces(t *testing.T, repo *ImageRepository, path string, faces []models.Face) {
	t.Helper()
	if err := repo.SaveIngestResult(testImage(path, 100), faces); err != nil {
		t.Fatalf("failed to seed %s: %v", path, err)
	}
}

func TestTagFaceAssignsName(t *testing.T) {
	db := setupTestDB(t)
	faceRepo := NewFaceRepository(db)

	face := models.Face{Top: 10, Right: 50, Bottom: 60, Left: 20}
	seedImageWithFaces(t, NewImageRepository(db), "/photos/a.jpg", []models.Face{face})

	if err := faceRepo.TagFace("/photos/a.jpg", boxOf(face), "Alice"); err != nil {
		t.Fatalf("TagFace failed: %v", err)
	}

	faces, err := faceRepo.ListByImagePath("/photos/a.jpg")
	if err != nil {
		t.Fatalf("ListByImagePath failed: %v", err)
	}
	if len(faces) != 1 {
		t.Fatalf("expected 1 face, got %d", len(faces))
	}
	if faces[0].Name == nil || *faces[0].Name != "Alice" {
		t.Errorf("name not persisted: %+v", faces[0].Name)
	}
	if faces[0].UpdatedAt == 0 {
		t.Error("expected updated_at to be set on tag")
	}
}

func TestTagFaceRetag(t *testing.T) {
	db := setupTestDB(t)
	faceRepo := NewFaceRepository(db)

	face := models.Face{Top: 10, Right: 50, Bottom: 60, Left: 20}
	seedImageWithFaces(t, NewImageRepository(db), "/photos/a.jpg", []models.Face{face})

	if err := faceRepo.TagFace("/photos/a.jpg", boxOf(face), "Alice"); err != nil {
		t.Fatalf("first tag failed: %v", err)
	}
	if err := faceRepo.TagFace("/photos/a.jpg", boxOf(face), "Bob"); err != nil {
		t.Fatalf("re-tag failed: %v", err)
	}

	faces, _ := faceRepo.ListByImagePath("/photos/a.jpg")
	if faces[0].Name == nil || *faces[0].Name != "Bob" {
		t.Errorf("expected last write to win, got %+v", faces[0].Name)
	}
}

func TestTagFaceUnknownBox(t *testing.T) {
	db := setupTestDB(t)
	faceRepo := NewFaceRepository(db)

	face := models.Face{Top: 10, Right: 50, Bottom: 60, Left: 20}
	seedImageWithFaces(t, NewImageRepository(db), "/photos/a.jpg", []models.Face{face})

	err := faceRepo.TagFace("/photos/a.jpg", media.Box{Top: 99, Right: 199, Bottom: 199, Left: 99}, "Nobody")
	if !errors.Is(err, ErrFaceNotFound) {
		t.Fatalf("expected ErrFaceNotFound, got %v", err)
	}

	// the existing face must be untouched
	faces, _ := faceRepo.ListByImagePath("/photos/a.jpg")
	if faces[0].Name != nil {
		t.Errorf("unrelated face gained a name: %q", *faces[0].Name)
	}
}

func TestTagFaceUnknownImage(t *testing.T) {
	faceRepo := NewFaceRepository(setupTestDB(t))
	err := faceRepo.TagFace("/photos/missing.jpg", media.Box{Top: 1, Right: 2, Bottom: 3}, "Nobody")
	if !errors.Is(err, ErrFaceNotFound) {
		t.Errorf("expected ErrFaceNotFound, got %v", err)
	}
}

func TestTagDifferentFacesConcurrently(t *testing.T) {
	db := setupTestDB(t)
	faceRepo := NewFaceRepository(db)

	left := models.Face{Top: 10, Right: 50, Bottom: 60, Left: 20}
	right := models.Face{Top: 10, Right: 250, Bottom: 60, Left: 220}
	seedImageWithFaces(t, NewImageRepository(db), "/photos/a.jpg", []models.Face{left, right})

	var wg sync.WaitGroup
	errs := make([]error, 2)
	wg.Add(2)
	go func() {
		defer wg.Done()
		errs[0] = faceRepo.TagFace("/photos/a.jpg", boxOf(left), "Alice")
	}()
	go func() {
		defer wg.Done()
		errs[1] = faceRepo.TagFace("/photos/a.jpg", boxOf(right), "Bob")
	}()
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("concurrent tag %d failed: %v", i, err)
		}
	}

	faces, err := faceRepo.ListByImagePath("/photos/a.jpg")
	if err != nil {
		t.Fatalf("ListByImagePath failed: %v", err)
	}
	names := make(map[string]bool)
	for _, f := range faces {
		if f.Name != nil {
			names[*f.Name] = true
		}
	}
	if !names["Alice"] || !names["Bob"] {
		t.Errorf("expected both tags to persist independently, got %v", names)
	}
}

func TestListByImagePathOrder(t *testing.T) {
	db := setupTestDB(t)
	faceRepo := NewFaceRepository(db)

	faces := []models.Face{
		{Top: 100, Right: 50, Bottom: 160, Left: 20},
		{Top: 10, Right: 250, Bottom: 60, Left: 220},
		{Top: 10, Right: 50, Bottom: 60, Left: 20},
	}
	seedImageWithFaces(t, NewImageRepository(db), "/photos/a.jpg", faces)

	got, err := faceRepo.ListByImagePath("/photos/a.jpg")
	if err != nil {
		t.Fatalf("ListByImagePath failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 faces, got %d", len(got))
	}
	// top-to-bottom, then left-to-right
	if got[0].Top != 10 || got[0].Left != 20 {
		t.Errorf("unexpected first face: %+v", got[0])
	}
	if got[1].Top != 10 || got[1].Left != 220 {
		t.Errorf("unexpected second face: %+v", got[1])
	}
	if got[2].Top != 100 {
		t.Errorf("unexpected third face: %+v", got[2])
	}
}
