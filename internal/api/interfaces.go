package api

import (
	"context"

	"memoriqr-service/internal/models"
	"memoriqr-service/internal/service"
)

type Generator interface {
	Generate(ctx context.Context, req *service.GenerateRequest) (*service.GenerateResult, error)
}

type Ledger interface {
	ListBatches(ctx context.Context, partnerID string) ([]models.BatchSummary, error)
	GetBatch(ctx context.Context, batchID string) (*service.BatchDetail, error)
	DeleteBatch(ctx context.Context, batchID string) (*service.DeleteBatchResult, error)
	PurgeBatch(ctx context.Context, batchID string) error
}

type Redeemer interface {
	Redeem(ctx context.Context, req *service.RedeemRequest) (*service.Redemption, error)
	Validate(ctx context.Context, code string) (*service.ValidateResult, error)
}

type Inventory interface {
	AddStock(ctx context.Context, req *service.AddStockRequest) (*service.StockChange, error)
	Adjust(ctx context.Context, req *service.AdjustRequest) (*service.StockChange, error)
	RecordMovement(ctx context.Context, req *service.MovementRequest) (*service.StockChange, error)
	List(ctx context.Context, f models.InventoryFilter) ([]models.InventoryItem, error)
	Summary(ctx context.Context) ([]models.InventorySummary, error)
	Movements(ctx context.Context, itemID string, limit int) ([]models.Movement, error)
	Deactivate(ctx context.Context, itemID string) error
}

type Partners interface {
	CreatePartner(ctx context.Context, req *service.CreatePartnerRequest) (*models.Partner, error)
	GetPartner(ctx context.Context, id string) (*models.Partner, error)
	ListPartners(ctx context.Context) ([]models.Partner, error)
	AssignCodes(ctx context.Context, req *service.AssignRequest) (*models.AssignResult, error)
	UnassignCodes(ctx context.Context, codes []string) (int, error)
	TransferCodes(ctx context.Context, fromPartnerID string, req *service.TransferRequest) (*service.TransferResult, error)
	ListPartnerCodes(ctx context.Context, partnerID string, f models.CodeFilter) ([]models.ActivationCode, int, error)
}

type Commissions interface {
	List(ctx context.Context, f models.CommissionFilter) ([]models.Commission, error)
	Approve(ctx context.Context, ids []string) ([]models.Commission, error)
	MarkPaid(ctx context.Context, ids []string, reference string) ([]models.Commission, error)
	Cancel(ctx context.Context, id string) (*models.Commission, error)
}

type Catalog interface {
	ListCodes(ctx context.Context, f models.CodeFilter) (*service.CodePage, error)
	Lookup(ctx context.Context, code string) (*service.CodeDetail, error)
	DeleteCodes(ctx context.Context, codes []string) (int64, error)
}
