package admin

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/storefront-service/internal/catalog"
	"github.com/vasiliy-maslov/storefront-service/internal/order"
)

const (
	SeriesDays       = 30
	TopProductsLimit = 5
	RecentOrdersSize = 6

	dateLayout = "2006-01-02"
)

type DailyRevenue struct {
	Date         string `json:"date"`
	RevenueCents int64  `json:"revenue_cents"`
	Orders       int    `json:"orders"`
}

type TopProduct struct {
	ProductID uuid.UUID `json:"product_id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	UnitsSold int       `json:"units_sold"`
}

type Dashboard struct {
	TotalRevenueCents       int64          `json:"total_revenue_cents"`
	MonthToDateRevenueCents int64          `json:"month_to_date_revenue_cents"`
	PaidOrderCount          int            `json:"paid_order_count"`
	DailyRevenue            []DailyRevenue `json:"daily_revenue"`
	TopProducts             []TopProduct   `json:"top_products"`
	RecentOrders            []order.Order  `json:"recent_orders"`
}

// BuildDashboard aggregates revenue orders and units sold relative to now.
// variantProducts maps variant id to product id; units whose variant is
// unknown are not ranked.
func BuildDashboard(
	now time.Time,
	revenueOrders []order.Order,
	unitsSold []order.UnitsSold,
	variantProducts map[uuid.UUID]uuid.UUID,
	products map[uuid.UUID]catalog.Product,
	recent []order.Order,
) Dashboard {
	now = now.UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)

	series := make([]DailyRevenue, SeriesDays)
	index := make(map[string]int, SeriesDays)
	for i := 0; i < SeriesDays; i++ {
		day := today.AddDate(0, 0, i-(SeriesDays-1)).Format(dateLayout)
		series[i] = DailyRevenue{Date: day}
		index[day] = i
	}

	d := Dashboard{DailyRevenue: series}
	for _, o := range revenueOrders {
		if !o.Status.IsRevenue() {
			continue
		}
		created := o.CreatedAt.UTC()
		d.TotalRevenueCents += o.SubtotalCents
		d.PaidOrderCount++
		if !created.Before(monthStart) {
			d.MonthToDateRevenueCents += o.SubtotalCents
		}
		if i, ok := index[created.Format(dateLayout)]; ok {
			series[i].RevenueCents += o.SubtotalCents
			series[i].Orders++
		}
	}

	var ranked []TopProduct
	position := make(map[uuid.UUID]int)
	for _, u := range unitsSold {
		productID, ok := variantProducts[u.VariantID]
		if !ok {
			continue
		}
		i, seen := position[productID]
		if !seen {
			p := products[productID]
			i = len(ranked)
			position[productID] = i
			ranked = append(ranked, TopProduct{ProductID: productID, Name: p.Name, Slug: p.Slug})
		}
		ranked[i].UnitsSold += u.Quantity
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].UnitsSold > ranked[j].UnitsSold })
	if len(ranked) > TopProductsLimit {
		ranked = ranked[:TopProductsLimit]
	}
	if ranked == nil {
		ranked = []TopProduct{}
	}
	d.TopProducts = ranked

	if len(recent) > RecentOrdersSize {
		recent = recent[:RecentOrdersSize]
	}
	if recent == nil {
		recent = []order.Order{}
	}
	d.RecentOrders = recent
	return d
}

type OrderStats interface {
	ListRevenueOrders(ctx context.Context, since *time.Time) ([]order.Order, error)
	ListUnitsSold(ctx context.Context) ([]order.UnitsSold, error)
	ListOrders(ctx context.Context, filter order.ListFilter) ([]order.Order, int, error)
}

type ProductLookup interface {
	GetVariantsByIDs(ctx context.Context, ids []uuid.UUID) ([]catalog.Variant, error)
	GetProductsByIDs(ctx context.Context, ids []uuid.UUID) ([]catalog.Product, error)
}

type DashboardService interface {
	Dashboard(ctx context.Context) (*Dashboard, error)
}

type dashboardService struct {
	orders   OrderStats
	products ProductLookup
	now      func() time.Time
}

func NewDashboardService(orders OrderStats, products ProductLookup) DashboardService {
	return &dashboardService{orders: orders, products: products, now: time.Now}
}

func (s *dashboardService) Dashboard(ctx context.Context) (*Dashboard, error) {
	revenue, err := s.orders.ListRevenueOrders(ctx, nil)
	if err != nil {
		log.Error().Err(err).Msg("service: failed to load revenue orders")
		return nil, fmt.Errorf("service: failed to load revenue orders: %w", err)
	}
	units, err := s.orders.ListUnitsSold(ctx)
	if err != nil {
		log.Error().Err(err).Msg("service: failed to load units sold")
		return nil, fmt.Errorf("service: failed to load units sold: %w", err)
	}
	recent, _, err := s.orders.ListOrders(ctx, order.ListFilter{Limit: RecentOrdersSize})
	if err != nil {
		log.Error().Err(err).Msg("service: failed to load recent orders")
		return nil, fmt.Errorf("service: failed to load recent orders: %w", err)
	}

	seen := make(map[uuid.UUID]struct{})
	var variantIDs []uuid.UUID
	for _, u := range units {
		if _, ok := seen[u.VariantID]; !ok {
			seen[u.VariantID] = struct{}{}
			variantIDs = append(variantIDs, u.VariantID)
		}
	}

	variantProducts := make(map[uuid.UUID]uuid.UUID, len(variantIDs))
	products := make(map[uuid.UUID]catalog.Product)
	if len(variantIDs) > 0 {
		variants, err := s.products.GetVariantsByIDs(ctx, variantIDs)
		if err != nil {
			return nil, fmt.Errorf("service: failed to load sold variants: %w", err)
		}
		productIDs := make([]uuid.UUID, 0, len(variants))
		for _, v := range variants {
			if _, ok := products[v.ProductID]; !ok {
				products[v.ProductID] = catalog.Product{}
				productIDs = append(productIDs, v.ProductID)
			}
			variantProducts[v.ID] = v.ProductID
		}
		ps, err := s.products.GetProductsByIDs(ctx, productIDs)
		if err != nil {
			return nil, fmt.Errorf("service: failed to load sold products: %w", err)
		}
		for _, p := range ps {
			products[p.ID] = p
		}
	}

	d := BuildDashboard(s.now(), revenue, units, variantProducts, products, recent)
	return &d, nil
}
