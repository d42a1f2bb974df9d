package service

import (
	"context"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	catalogdomain "github.com/glitchidea/glichflow/internal/catalog/domain"
	"github.com/glitchidea/glichflow/internal/catalog/repository"
	"github.com/glitchidea/glichflow/internal/observability/metrics"
	"github.com/glitchidea/glichflow/internal/pricing"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupService(t *testing.T) catalogdomain.Service {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&catalogdomain.PackageGroup{},
		&catalogdomain.Package{},
		&catalogdomain.ExtraService{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	return New(Params{DB: db, Log: zap.NewNop(), GenID: node, Repo: repository.Provide(), Metrics: metrics.NewNop()})
}

func ptr[T any](v T) *T { return &v }

func dec(v string) *decimal.Decimal {
	d := decimal.RequireFromString(v)
	return &d
}

func TestGroupLifecycle(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()

	group, err := svc.CreateGroup(ctx, catalogdomain.GroupRequest{Name: " WordPress ", Description: "sites"})
	require.NoError(t, err)
	assert.Equal(t, "WordPress", group.Name)

	_, err = svc.CreateGroup(ctx, catalogdomain.GroupRequest{Name: "WordPress"})
	assert.ErrorIs(t, err, catalogdomain.ErrGroupNameTaken)

	_, err = svc.CreateGroup(ctx, catalogdomain.GroupRequest{Name: "  "})
	assert.ErrorIs(t, err, catalogdomain.ErrInvalidName)

	_, err = svc.CreatePackage(ctx, group.ID.String(), catalogdomain.PackageRequest{Name: ptr("Basic"), BasePrice: dec("1000")})
	require.NoError(t, err)
	_, err = svc.CreateExtraService(ctx, group.ID.String(), catalogdomain.ExtraServiceRequest{
		Name:        ptr("SEO"),
		PricingType: ptr("fixed"),
		InputType:   ptr("checkbox"),
		Price:       dec("200"),
	})
	require.NoError(t, err)

	detail, err := svc.GetGroup(ctx, group.ID.String())
	require.NoError(t, err)
	assert.Len(t, detail.Packages, 1)
	assert.Len(t, detail.ExtraServices, 1)

	require.NoError(t, svc.DeleteGroup(ctx, group.ID.String()))
	_, err = svc.GetGroup(ctx, group.ID.String())
	assert.ErrorIs(t, err, catalogdomain.ErrNotFound)

	pkgs, err := svc.ListGroups(ctx)
	require.NoError(t, err)
	assert.Empty(t, pkgs)
}

func TestCreatePackageValidation(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()

	group, err := svc.CreateGroup(ctx, catalogdomain.GroupRequest{Name: "SaaS"})
	require.NoError(t, err)

	_, err = svc.CreatePackage(ctx, group.ID.String(), catalogdomain.PackageRequest{Name: ptr("Pro"), BasePrice: dec("-1")})
	assert.ErrorIs(t, err, catalogdomain.ErrInvalidPrice)

	_, err = svc.CreatePackage(ctx, group.ID.String(), catalogdomain.PackageRequest{
		Name:                 ptr("Pro"),
		BasePrice:            dec("5000"),
		ExtraPagesMultiplier: dec("-0.5"),
	})
	assert.ErrorIs(t, err, catalogdomain.ErrInvalidMultiplier)

	pkg, err := svc.CreatePackage(ctx, group.ID.String(), catalogdomain.PackageRequest{Name: ptr("Pro"), BasePrice: dec("5000")})
	require.NoError(t, err)
	assert.True(t, pkg.IsActive)

	_, err = svc.CreatePackage(ctx, group.ID.String(), catalogdomain.PackageRequest{Name: ptr("Pro"), BasePrice: dec("10")})
	assert.ErrorIs(t, err, catalogdomain.ErrPackageNameTaken)

	updated, err := svc.UpdatePackage(ctx, pkg.ID.String(), catalogdomain.PackageRequest{BasePrice: dec("5500"), IsActive: ptr(false)})
	require.NoError(t, err)
	assert.True(t, updated.BasePrice.Equal(decimal.NewFromInt(5500)))
	assert.False(t, updated.IsActive)

	stored, err := svc.GetPackage(ctx, pkg.ID.String())
	require.NoError(t, err)
	assert.True(t, stored.BasePrice.Equal(decimal.NewFromInt(5500)))
	assert.False(t, stored.IsActive)

	_, err = svc.GetPackage(ctx, "nope")
	assert.ErrorIs(t, err, catalogdomain.ErrInvalidID)
}

func TestCreateExtraServiceValidation(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()

	group, err := svc.CreateGroup(ctx, catalogdomain.GroupRequest{Name: "E-Commerce"})
	require.NoError(t, err)
	gid := group.ID.String()

	cases := []struct {
		name string
		req  catalogdomain.ExtraServiceRequest
		want error
	}{
		{
			name: "unknown pricing type",
			req:  catalogdomain.ExtraServiceRequest{Name: ptr("x"), PricingType: ptr("per_minute"), InputType: ptr("checkbox")},
			want: catalogdomain.ErrInvalidPricingType,
		},
		{
			name: "unknown input type",
			req:  catalogdomain.ExtraServiceRequest{Name: ptr("x"), PricingType: ptr("fixed"), InputType: ptr("slider")},
			want: catalogdomain.ErrInvalidInputType,
		},
		{
			name: "negative price",
			req:  catalogdomain.ExtraServiceRequest{Name: ptr("x"), PricingType: ptr("fixed"), InputType: ptr("checkbox"), Price: dec("-5")},
			want: catalogdomain.ErrInvalidPrice,
		},
		{
			name: "negative percentage",
			req:  catalogdomain.ExtraServiceRequest{Name: ptr("x"), PricingType: ptr("percentage"), InputType: ptr("checkbox"), Percentage: dec("-1")},
			want: catalogdomain.ErrInvalidPercentage,
		},
		{
			name: "default above max",
			req: catalogdomain.ExtraServiceRequest{
				Name: ptr("x"), PricingType: ptr("per_page"), InputType: ptr("number"),
				MinQuantity: ptr(1), MaxQuantity: ptr(5), DefaultQuantity: ptr(6),
			},
			want: catalogdomain.ErrInvalidQuantityBounds,
		},
		{
			name: "max below min",
			req: catalogdomain.ExtraServiceRequest{
				Name: ptr("x"), PricingType: ptr("per_page"), InputType: ptr("number"),
				MinQuantity: ptr(3), MaxQuantity: ptr(2), DefaultQuantity: ptr(3),
			},
			want: catalogdomain.ErrInvalidQuantityBounds,
		},
		{
			name: "select without options",
			req:  catalogdomain.ExtraServiceRequest{Name: ptr("x"), PricingType: ptr("fixed"), InputType: ptr("select")},
			want: catalogdomain.ErrInvalidOptions,
		},
		{
			name: "duplicate option values",
			req: catalogdomain.ExtraServiceRequest{
				Name: ptr("x"), PricingType: ptr("fixed"), InputType: ptr("select"),
				Options: &[]catalogdomain.Option{{Value: "a", Price: decimal.NewFromInt(1)}, {Value: "a", Price: decimal.NewFromInt(2)}},
			},
			want: catalogdomain.ErrInvalidOptions,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.CreateExtraService(ctx, gid, tc.req)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestListExtraServicesOrderAndFilter(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()

	group, err := svc.CreateGroup(ctx, catalogdomain.GroupRequest{Name: "Mobile"})
	require.NoError(t, err)
	gid := group.ID.String()

	for i, name := range []string{"Push", "Analytics", "Store listing"} {
		_, err := svc.CreateExtraService(ctx, gid, catalogdomain.ExtraServiceRequest{
			Name:        ptr(name),
			PricingType: ptr("fixed"),
			InputType:   ptr("checkbox"),
			Price:       dec("100"),
			Order:       ptr(3 - i),
			IsActive:    ptr(name != "Analytics"),
		})
		require.NoError(t, err)
	}

	all, err := svc.ListExtraServices(ctx, gid, false)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "Store listing", all[0].Name)
	assert.Equal(t, "Push", all[2].Name)

	active, err := svc.ListExtraServices(ctx, gid, true)
	require.NoError(t, err)
	assert.Len(t, active, 2)
}

func TestQuote(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()

	group, err := svc.CreateGroup(ctx, catalogdomain.GroupRequest{Name: "Corporate"})
	require.NoError(t, err)
	gid := group.ID.String()

	pkg, err := svc.CreatePackage(ctx, gid, catalogdomain.PackageRequest{Name: ptr("Standard"), BasePrice: dec("10000")})
	require.NoError(t, err)

	pages, err := svc.CreateExtraService(ctx, gid, catalogdomain.ExtraServiceRequest{
		Name: ptr("Extra pages"), PricingType: ptr("per_page"), InputType: ptr("number"),
		Price: dec("500"), MinQuantity: ptr(1), MaxQuantity: ptr(20), DefaultQuantity: ptr(1),
	})
	require.NoError(t, err)
	_, err = svc.CreateExtraService(ctx, gid, catalogdomain.ExtraServiceRequest{
		Name: ptr("Maintenance"), PricingType: ptr("percentage"), InputType: ptr("checkbox"),
		Percentage: dec("10"), IsRequired: ptr(true),
	})
	require.NoError(t, err)
	hosting, err := svc.CreateExtraService(ctx, gid, catalogdomain.ExtraServiceRequest{
		Name: ptr("Hosting"), PricingType: ptr("fixed"), InputType: ptr("select"),
		Options: &[]catalogdomain.Option{
			{Value: "basic", Label: "Basic", Price: decimal.NewFromInt(1200)},
			{Value: "premium", Label: "Premium", Price: decimal.NewFromInt(3000)},
		},
	})
	require.NoError(t, err)

	quote, err := svc.Quote(ctx, catalogdomain.QuoteRequest{
		GroupID:   gid,
		PackageID: pkg.ID.String(),
		Selections: []catalogdomain.QuoteSelection{
			{ExtraServiceID: pages.ID.String(), Quantity: 3},
			{ExtraServiceID: hosting.ID.String(), Option: "premium"},
		},
	})
	require.NoError(t, err)
	require.Len(t, quote.Lines, 3)
	// 3*500 + 3000 + 10% of 10000
	assert.True(t, quote.Totals.ExtraServicesTotal.Equal(decimal.NewFromInt(5500)), quote.Totals.ExtraServicesTotal.String())
	assert.True(t, quote.Totals.FinalPrice.Equal(decimal.NewFromInt(15500)))

	_, err = svc.Quote(ctx, catalogdomain.QuoteRequest{
		GroupID:    gid,
		PackageID:  pkg.ID.String(),
		Selections: []catalogdomain.QuoteSelection{{ExtraServiceID: pages.ID.String(), Quantity: 21}},
	})
	assert.ErrorIs(t, err, pricing.ErrQuantityOutOfRange)

	_, err = svc.Quote(ctx, catalogdomain.QuoteRequest{
		GroupID:    gid,
		Selections: []catalogdomain.QuoteSelection{{ExtraServiceID: hosting.ID.String(), Option: "gold"}},
	})
	assert.ErrorIs(t, err, pricing.ErrInvalidOption)
}
