package store

import (
	"context"
	"errors"
)

var (
	// ErrNotFound saat key tidak ada (read) atau queue kosong (pop).
	ErrNotFound = errors.New("store: not found")
	// ErrUnavailable saat store tidak bisa dihubungi; caller wajib fail closed.
	ErrUnavailable = errors.New("store: unavailable")
	// ErrConflict saat CAS kalah terus sampai batas retry.
	ErrConflict = errors.New("store: update conflict")
)

// UpdateFunc menerima nilai sekarang (nil jika key belum ada) dan
// mengembalikan nilai baru. Return (nil, nil) berarti hapus key.
type UpdateFunc func(cur []byte) ([]byte, error)

// Store adalah satu-satunya titik serialisasi antar komponen.
// Semua mutasi shared state lewat sini: read-modify-write atomik,
// claim pakai SetIfAbsent, FIFO pakai queue ops. Tidak ada komponen
// yang boleh pegang mutex aplikasi lintas request/tick.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, val []byte) error
	// SetIfAbsent dipakai untuk claim first-committer-wins (kursi, active order).
	SetIfAbsent(ctx context.Context, key string, val []byte) (bool, error)
	// Update menjalankan fn di bawah CAS; retry saat ada penulis lain.
	Update(ctx context.Context, key string, fn UpdateFunc) error
	Delete(ctx context.Context, key string) error

	Keys(ctx context.Context, prefix string) ([]string, error)
	DeletePrefix(ctx context.Context, prefix string) (int, error)

	// FIFO queue per key (antrian order per room).
	PushBack(ctx context.Context, key, val string) error
	PushFront(ctx context.Context, key, val string) error
	PopFront(ctx context.Context, key string) (string, error)
	// QueueItems snapshot isi queue tanpa mengubahnya.
	QueueItems(ctx context.Context, key string) ([]string, error)
}
