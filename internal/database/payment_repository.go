// internal/database/payment_repository.go
package database

import (
	"context"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"inkgate/internal/models"
	"inkgate/internal/utils"
)

// PaymentDocument represents the MongoDB schema for a payment receipt.
type PaymentDocument struct {
	ID        string    `bson:"_id"`
	PostID    string    `bson:"postid"`
	ViewerID  string    `bson:"viewerid"`
	Amount    int64     `bson:"amount"`
	Currency  string    `bson:"currency"`
	CreatedAt time.Time `bson:"createdat"`
}

// SavePaymentReceipt persists the receipt for a confirmed payment. Written
// before the access grant so that a grant failure leaves a reconcilable
// record instead of a paid-but-invisible viewer.
func (m *MongoDB) SavePaymentReceipt(ctx context.Context, receipt *models.PaymentReceipt) error {
	doc := &PaymentDocument{
		ID:        receipt.ID,
		PostID:    receipt.PostID,
		ViewerID:  receipt.ViewerID,
		Amount:    receipt.Amount,
		Currency:  receipt.Currency,
		CreatedAt: receipt.CreatedAt,
	}

	_, err := m.Payments.InsertOne(ctx, doc)
	if err != nil {
		return utils.NewAppError(utils.ErrDatabase, "Failed to save payment receipt", err)
	}
	return nil
}

// GetViewerReceipts returns the viewer's receipts, newest first. Serves the
// receipts endpoint, which tells "never paid" apart from "paid, grant lost"
// before a completion call is replayed.
func (m *MongoDB) GetViewerReceipts(ctx context.Context, viewerID string) ([]*models.PaymentReceipt, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdat", Value: -1}})
	cursor, err := m.Payments.Find(ctx, bson.M{"viewerid": viewerID}, opts)
	if err != nil {
		return nil, utils.NewAppError(utils.ErrDatabase, "Failed to query receipts", err)
	}
	defer cursor.Close(ctx)

	receipts := make([]*models.PaymentReceipt, 0)
	for cursor.Next(ctx) {
		var doc PaymentDocument
		if err := cursor.Decode(&doc); err != nil {
			slog.Warn("skipping undecodable payment receipt", "error", err)
			continue
		}
		receipts = append(receipts, &models.PaymentReceipt{
			ID:        doc.ID,
			PostID:    doc.PostID,
			ViewerID:  doc.ViewerID,
			Amount:    doc.Amount,
			Currency:  doc.Currency,
			CreatedAt: doc.CreatedAt,
		})
	}

	if err := cursor.Err(); err != nil {
		return nil, utils.NewAppError(utils.ErrDatabase, "Cursor iteration failed", err)
	}
	return receipts, nil
}
