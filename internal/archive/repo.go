package archive

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ariefcatur/go-diner-live.git/internal/diner"
)

// Repo menyimpan order yang sudah final ke Postgres. Record panasnya
// di KV store sudah dihapus; ini satu-satunya jejak durable-nya.
type Repo struct{ DB *pgxpool.Pool }

// SudahDiarsip: idempotency short-circuit kalau event diproses ulang.
func (r *Repo) SudahDiarsip(ctx context.Context, orderID string) (bool, error) {
	var exists bool
	err := r.DB.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM archived_orders WHERE order_id=$1)`, orderID).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

func (r *Repo) Insert(ctx context.Context, p diner.OrderFinalizedPayload) error {
	o := p.Order
	_, err := r.DB.Exec(ctx, `
		INSERT INTO archived_orders(
			order_id, user_id, room_id, seat_id, item_ref,
			final_status, reason, enqueued_at, served_at, archived_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		ON CONFLICT (order_id) DO NOTHING`,
		o.ID, o.UserID, o.RoomID, o.SeatID, o.ItemRef,
		p.FinalStatus, p.Reason, o.EnqueuedAt, o.ServedAt, time.Now().UTC(),
	)
	return err
}
