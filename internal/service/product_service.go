package service

import (
	"context"

	"github.com/marianaArangoE/ecommerce-tracking-api-sub000/internal/datamodels/product"
)

// ProductService 商品查询与后台维护
type ProductService struct {
	repo product.Repository
}

// NewProductService 创建商品服务
func NewProductService(repo product.Repository) *ProductService {
	return &ProductService{repo: repo}
}

func (s *ProductService) GetByID(ctx context.Context, id int64) (*product.Product, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *ProductService) ListActive(ctx context.Context) ([]*product.Product, error) {
	return s.repo.ListActive(ctx)
}

func (s *ProductService) Create(ctx context.Context, p *product.Product) error {
	return s.repo.Create(ctx, p)
}

func (s *ProductService) Update(ctx context.Context, p *product.Product) error {
	return s.repo.Update(ctx, p)
}
