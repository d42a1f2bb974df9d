package service

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	catalogdomain "github.com/glitchidea/glichflow/internal/catalog/domain"
	catalogrepo "github.com/glitchidea/glichflow/internal/catalog/repository"
	"github.com/glitchidea/glichflow/internal/clock"
	"github.com/glitchidea/glichflow/internal/config"
	"github.com/glitchidea/glichflow/internal/observability/metrics"
	"github.com/glitchidea/glichflow/internal/pricing"
	"github.com/glitchidea/glichflow/internal/providers/pdf"
	saledomain "github.com/glitchidea/glichflow/internal/sale/domain"
	"github.com/glitchidea/glichflow/internal/sale/repository"
	"github.com/glitchidea/glichflow/internal/storage"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fixture struct {
	svc     saledomain.Service
	db      *gorm.DB
	node    *snowflake.Node
	store   *storage.MemoryStore
	clock   *clock.FakeClock
	catalog catalogdomain.Repository
}

func setup(t *testing.T) *fixture {
	t.Helper()
	return setupWithDSN(t, "file:"+t.Name()+"?mode=memory&cache=shared")
}

// setupOnDisk backs the fixture with a database file and a single pooled
// connection, so concurrent transactions queue instead of failing busy.
func setupOnDisk(t *testing.T) *fixture {
	t.Helper()
	f := setupWithDSN(t, "file:"+filepath.Join(t.TempDir(), "sales.db")+"?_pragma=busy_timeout(5000)")
	sqlDB, err := f.db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return f
}

func setupWithDSN(t *testing.T, dsn string) *fixture {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&catalogdomain.PackageGroup{},
		&catalogdomain.Package{},
		&catalogdomain.ExtraService{},
		&saledomain.ProjectSale{},
		&saledomain.SaleExtraService{},
		&saledomain.AdditionalCost{},
		&saledomain.SalePayment{},
		&saledomain.SaleFile{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	f := &fixture{
		db:      db,
		node:    node,
		store:   storage.NewMemoryStore(),
		clock:   clock.NewFakeClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)),
		catalog: catalogrepo.Provide(),
	}
	f.svc = New(Params{
		DB:          db,
		Log:         zap.NewNop(),
		GenID:       node,
		Repo:        repository.Provide(),
		CatalogRepo: f.catalog,
		Storage:     f.store,
		PDF:         pdf.New(),
		Config:      config.Config{Company: config.CompanyConfig{Name: "GlichFlow", Currency: "TRY"}},
		Clock:       f.clock,
		Metrics:     metrics.NewNop(),
	})
	return f
}

func d(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func dp(v string) *decimal.Decimal {
	x := d(v)
	return &x
}

func ptr[T any](v T) *T { return &v }

func (f *fixture) seedCatalog(t *testing.T) (catalogdomain.Package, map[string]catalogdomain.ExtraService) {
	t.Helper()
	ctx := context.Background()
	now := f.clock.Now()

	group := catalogdomain.PackageGroup{ID: f.node.Generate(), Name: "WordPress", CreatedAt: now, UpdatedAt: now}
	require.NoError(t, f.catalog.InsertGroup(ctx, f.db, &group))

	pkg := catalogdomain.Package{ID: f.node.Generate(), GroupID: group.ID, Name: "Corporate", BasePrice: d("10000"), IsActive: true, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, f.catalog.InsertPackage(ctx, f.db, &pkg))

	svcs := map[string]catalogdomain.ExtraService{
		"pages": {
			Name: "Extra pages", PricingType: pricing.PricingTypePerPage, Price: d("500"),
			InputType: catalogdomain.InputNumber, MinQuantity: 1, MaxQuantity: 10, DefaultQuantity: 1,
		},
		"seo": {
			Name: "SEO setup", PricingType: pricing.PricingTypeFixed, Price: d("750"),
			InputType: catalogdomain.InputCheckbox, MinQuantity: 1, MaxQuantity: 1, DefaultQuantity: 1,
		},
		"care": {
			Name: "Care plan", PricingType: pricing.PricingTypePercentage, Percentage: d("10"),
			InputType: catalogdomain.InputCheckbox, MinQuantity: 1, MaxQuantity: 1, DefaultQuantity: 1,
		},
		"hosting": {
			Name: "Hosting", PricingType: pricing.PricingTypePerYear, InputType: catalogdomain.InputSelect,
			MinQuantity: 1, MaxQuantity: 5, DefaultQuantity: 1,
			Options: []catalogdomain.Option{{Value: "basic", Price: d("1200")}, {Value: "pro", Price: d("2400")}},
		},
	}
	for key, svc := range svcs {
		svc.ID = f.node.Generate()
		svc.GroupID = group.ID
		svc.IsActive = true
		svc.CreatedAt = now
		svc.UpdatedAt = now
		require.NoError(t, f.catalog.InsertExtraService(ctx, f.db, &svc))
		svcs[key] = svc
	}
	return pkg, svcs
}

func assertConsistent(t *testing.T, resp *saledomain.Response) {
	t.Helper()
	want := resp.BasePrice.Add(resp.ExtraServicesTotal).Add(resp.AdditionalCostsTotal)
	assert.True(t, resp.FinalPrice.Equal(want), "final %s != %s", resp.FinalPrice, want)
}

func TestCreateCopiesPackagePrice(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	pkg, _ := f.seedCatalog(t)

	resp, err := f.svc.Create(ctx, saledomain.CreateRequest{
		CustomerName:  "Acme",
		ProjectName:   "Website",
		BasePackageID: pkg.ID.String(),
	})
	require.NoError(t, err)
	assert.True(t, resp.BasePrice.Equal(d("10000")))
	assert.True(t, resp.FinalPrice.Equal(d("10000")))
	assert.Equal(t, "draft", resp.Status)
	assertConsistent(t, resp)

	_, err = f.svc.Create(ctx, saledomain.CreateRequest{CustomerName: " ", ProjectName: "x"})
	assert.ErrorIs(t, err, saledomain.ErrInvalidCustomer)

	_, err = f.svc.Create(ctx, saledomain.CreateRequest{CustomerName: "Acme", ProjectName: "x", BasePrice: dp("-1")})
	assert.ErrorIs(t, err, saledomain.ErrInvalidPrice)

	_, err = f.svc.Create(ctx, saledomain.CreateRequest{CustomerName: "Acme", ProjectName: "x", BasePackageID: "123"})
	assert.ErrorIs(t, err, saledomain.ErrInvalidPackage)
}

func TestTotalsFollowEveryChildMutation(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	pkg, svcs := f.seedCatalog(t)

	sale, err := f.svc.Create(ctx, saledomain.CreateRequest{CustomerName: "Acme", ProjectName: "Website", BasePackageID: pkg.ID.String()})
	require.NoError(t, err)

	resp, err := f.svc.AddExtraService(ctx, sale.ID, saledomain.ItemRequest{ExtraServiceID: svcs["pages"].ID.String(), Quantity: 3})
	require.NoError(t, err)
	require.Len(t, resp.ExtraServices, 1)
	assert.True(t, resp.ExtraServices[0].UnitPrice.Equal(d("500")))
	assert.True(t, resp.ExtraServices[0].TotalPrice.Equal(d("1500")))
	assert.True(t, resp.ExtraServicesTotal.Equal(d("1500")))
	assertConsistent(t, resp)

	resp, err = f.svc.AddExtraService(ctx, sale.ID, saledomain.ItemRequest{ExtraServiceID: svcs["seo"].ID.String(), Quantity: 1})
	require.NoError(t, err)
	assert.True(t, resp.ExtraServicesTotal.Equal(d("2250")))

	resp, err = f.svc.AddExtraService(ctx, sale.ID, saledomain.ItemRequest{ExtraServiceID: svcs["care"].ID.String()})
	require.NoError(t, err)
	assert.True(t, resp.ExtraServicesTotal.Equal(d("3250")))

	resp, err = f.svc.AddExtraService(ctx, sale.ID, saledomain.ItemRequest{CustomServiceName: "Logo design", UnitPrice: dp("900"), Quantity: 2})
	require.NoError(t, err)
	assert.True(t, resp.ExtraServicesTotal.Equal(d("5050")))

	resp, err = f.svc.AddCost(ctx, sale.ID, saledomain.CostRequest{CostType: ptr("hosting"), Name: ptr("VPS"), Cost: dp("1200")})
	require.NoError(t, err)
	assert.True(t, resp.AdditionalCostsTotal.Equal(d("1200")))
	assert.True(t, resp.FinalPrice.Equal(d("16250")))
	assertConsistent(t, resp)

	// base price change reprices the percentage line: 10% of 20000
	resp, err = f.svc.Update(ctx, sale.ID, saledomain.UpdateRequest{BasePrice: dp("20000")})
	require.NoError(t, err)
	assert.True(t, resp.ExtraServicesTotal.Equal(d("6050")), resp.ExtraServicesTotal.String())
	assert.True(t, resp.FinalPrice.Equal(d("27250")))
	assertConsistent(t, resp)

	pagesLine := resp.ExtraServices[0].ID
	resp, err = f.svc.UpdateExtraService(ctx, sale.ID, pagesLine, saledomain.ItemUpdateRequest{Quantity: ptr(5)})
	require.NoError(t, err)
	assert.True(t, resp.ExtraServicesTotal.Equal(d("7050")))
	assertConsistent(t, resp)

	resp, err = f.svc.RemoveExtraService(ctx, sale.ID, pagesLine)
	require.NoError(t, err)
	assert.Len(t, resp.ExtraServices, 3)
	assert.True(t, resp.ExtraServicesTotal.Equal(d("4550")))
	assertConsistent(t, resp)

	costID := resp.AdditionalCosts[0].ID
	resp, err = f.svc.UpdateCost(ctx, sale.ID, costID, saledomain.CostRequest{Cost: dp("1500")})
	require.NoError(t, err)
	assert.True(t, resp.AdditionalCostsTotal.Equal(d("1500")))

	resp, err = f.svc.RemoveCost(ctx, sale.ID, costID)
	require.NoError(t, err)
	assert.True(t, resp.AdditionalCostsTotal.IsZero())
	assert.True(t, resp.FinalPrice.Equal(d("24550")))
	assertConsistent(t, resp)
}

func TestConcurrentChildWritesRecomputeFromFullSet(t *testing.T) {
	f := setupOnDisk(t)
	ctx := context.Background()
	pkg, svcs := f.seedCatalog(t)

	sale, err := f.svc.Create(ctx, saledomain.CreateRequest{CustomerName: "Acme", ProjectName: "Shop", BasePackageID: pkg.ID.String()})
	require.NoError(t, err)

	const writers = 8
	var wg sync.WaitGroup
	errs := make(chan error, writers*2)
	for i := 0; i < writers; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := f.svc.AddExtraService(ctx, sale.ID, saledomain.ItemRequest{ExtraServiceID: svcs["pages"].ID.String(), Quantity: 2})
			errs <- err
		}()
		go func() {
			defer wg.Done()
			_, err := f.svc.AddCost(ctx, sale.ID, saledomain.CostRequest{CostType: ptr("plugin"), Name: ptr("Forms"), Cost: dp("125.50")})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	resp, err := f.svc.Get(ctx, sale.ID)
	require.NoError(t, err)
	require.Len(t, resp.ExtraServices, writers)
	require.Len(t, resp.AdditionalCosts, writers)

	lines := decimal.Zero
	for _, item := range resp.ExtraServices {
		lines = lines.Add(item.TotalPrice)
	}
	costs := decimal.Zero
	for _, cost := range resp.AdditionalCosts {
		costs = costs.Add(cost.Cost)
	}
	assert.True(t, resp.ExtraServicesTotal.Equal(lines), resp.ExtraServicesTotal.String())
	assert.True(t, resp.ExtraServicesTotal.Equal(d("8000")))
	assert.True(t, resp.AdditionalCostsTotal.Equal(costs), resp.AdditionalCostsTotal.String())
	assert.True(t, resp.AdditionalCostsTotal.Equal(d("1004")))
	assert.True(t, resp.FinalPrice.Equal(d("19004")), resp.FinalPrice.String())
	assertConsistent(t, resp)
}

func TestManualPriceSurvivesBaseRepricing(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	pkg, svcs := f.seedCatalog(t)

	sale, err := f.svc.Create(ctx, saledomain.CreateRequest{CustomerName: "Acme", ProjectName: "Shop", BasePackageID: pkg.ID.String()})
	require.NoError(t, err)
	_, err = f.svc.AddExtraService(ctx, sale.ID, saledomain.ItemRequest{ExtraServiceID: svcs["care"].ID.String(), UnitPrice: dp("300")})
	require.NoError(t, err)
	resp, err := f.svc.AddExtraService(ctx, sale.ID, saledomain.ItemRequest{ExtraServiceID: svcs["care"].ID.String()})
	require.NoError(t, err)
	require.Len(t, resp.ExtraServices, 2)
	assert.True(t, resp.ExtraServicesTotal.Equal(d("1300")))

	resp, err = f.svc.Update(ctx, sale.ID, saledomain.UpdateRequest{BasePrice: dp("20000")})
	require.NoError(t, err)
	assert.True(t, resp.ExtraServices[0].UnitPrice.Equal(d("300")), resp.ExtraServices[0].UnitPrice.String())
	assert.True(t, resp.ExtraServices[1].UnitPrice.Equal(d("2000")), resp.ExtraServices[1].UnitPrice.String())
	assert.True(t, resp.FinalPrice.Equal(d("22300")))
	assertConsistent(t, resp)

	// Pinning the second line later keeps it through the next change too.
	resp, err = f.svc.UpdateExtraService(ctx, sale.ID, resp.ExtraServices[1].ID, saledomain.ItemUpdateRequest{UnitPrice: dp("1500")})
	require.NoError(t, err)
	resp, err = f.svc.Update(ctx, sale.ID, saledomain.UpdateRequest{BasePrice: dp("5000")})
	require.NoError(t, err)
	assert.True(t, resp.ExtraServicesTotal.Equal(d("1800")), resp.ExtraServicesTotal.String())
	assertConsistent(t, resp)
}

func TestAddExtraServiceValidation(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	pkg, svcs := f.seedCatalog(t)

	sale, err := f.svc.Create(ctx, saledomain.CreateRequest{CustomerName: "Acme", ProjectName: "Shop", BasePackageID: pkg.ID.String()})
	require.NoError(t, err)

	cases := []struct {
		name string
		req  saledomain.ItemRequest
		want error
	}{
		{"neither", saledomain.ItemRequest{}, saledomain.ErrInvalidLine},
		{"both", saledomain.ItemRequest{ExtraServiceID: svcs["seo"].ID.String(), CustomServiceName: "x"}, saledomain.ErrInvalidLine},
		{"quantity above max", saledomain.ItemRequest{ExtraServiceID: svcs["pages"].ID.String(), Quantity: 11}, saledomain.ErrInvalidQuantity},
		{"negative quantity", saledomain.ItemRequest{ExtraServiceID: svcs["pages"].ID.String(), Quantity: -1}, saledomain.ErrInvalidQuantity},
		{"missing option", saledomain.ItemRequest{ExtraServiceID: svcs["hosting"].ID.String()}, saledomain.ErrInvalidOption},
		{"unknown service", saledomain.ItemRequest{ExtraServiceID: "42"}, saledomain.ErrInvalidExtraService},
		{"custom without price", saledomain.ItemRequest{CustomServiceName: "x"}, saledomain.ErrInvalidPrice},
		{"negative price", saledomain.ItemRequest{CustomServiceName: "x", UnitPrice: dp("-3")}, saledomain.ErrInvalidPrice},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.AddExtraService(ctx, sale.ID, tc.req)
			assert.ErrorIs(t, err, tc.want)
		})
	}

	resp, err := f.svc.AddExtraService(ctx, sale.ID, saledomain.ItemRequest{ExtraServiceID: svcs["hosting"].ID.String(), Option: "pro", Quantity: 2})
	require.NoError(t, err)
	assert.True(t, resp.ExtraServicesTotal.Equal(d("4800")))
	assert.Equal(t, "pro", resp.ExtraServices[0].Option)
}

func TestStatusTransitions(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	sale, err := f.svc.Create(ctx, saledomain.CreateRequest{CustomerName: "Acme", ProjectName: "App", BasePrice: dp("5000")})
	require.NoError(t, err)

	_, err = f.svc.TransitionStatus(ctx, sale.ID, "completed")
	assert.ErrorIs(t, err, saledomain.ErrInvalidTransition)

	_, err = f.svc.TransitionStatus(ctx, sale.ID, "bogus")
	assert.ErrorIs(t, err, saledomain.ErrInvalidStatus)

	for _, next := range []string{"quoted", "in_progress", "completed"} {
		resp, err := f.svc.TransitionStatus(ctx, sale.ID, next)
		require.NoError(t, err)
		assert.Equal(t, next, resp.Status)
		if next == "in_progress" {
			require.NotNil(t, resp.StartDate)
		}
	}

	_, err = f.svc.TransitionStatus(ctx, sale.ID, "cancelled")
	assert.ErrorIs(t, err, saledomain.ErrInvalidTransition)

	_, err = f.svc.AddCost(ctx, sale.ID, saledomain.CostRequest{CostType: ptr("ssl"), Name: ptr("cert"), Cost: dp("100")})
	assert.ErrorIs(t, err, saledomain.ErrSaleClosed)
}

func TestPaymentsAndBalance(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	sale, err := f.svc.Create(ctx, saledomain.CreateRequest{CustomerName: "Acme", ProjectName: "App", BasePrice: dp("5000")})
	require.NoError(t, err)

	_, err = f.svc.RecordPayment(ctx, sale.ID, saledomain.PaymentRequest{Amount: d("0"), Method: "cash"})
	assert.ErrorIs(t, err, saledomain.ErrInvalidPaymentAmount)
	_, err = f.svc.RecordPayment(ctx, sale.ID, saledomain.PaymentRequest{Amount: d("10"), Method: "crypto"})
	assert.ErrorIs(t, err, saledomain.ErrInvalidPaymentMethod)

	resp, err := f.svc.RecordPayment(ctx, sale.ID, saledomain.PaymentRequest{Amount: d("2000"), Method: "bank_transfer", Reference: "TR-1"})
	require.NoError(t, err)
	assert.True(t, resp.PaidTotal.Equal(d("2000")))
	assert.True(t, resp.BalanceDue.Equal(d("3000")))
	assert.True(t, resp.FinalPrice.Equal(d("5000")))

	receipt, err := f.svc.PaymentReceiptPDF(ctx, sale.ID, resp.Payments[0].ID)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(receipt.Content), "%PDF"))

	resp, err = f.svc.RemovePayment(ctx, sale.ID, resp.Payments[0].ID)
	require.NoError(t, err)
	assert.True(t, resp.BalanceDue.Equal(d("5000")))
}

func TestFilesFollowRowLifecycle(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	sale, err := f.svc.Create(ctx, saledomain.CreateRequest{CustomerName: "Acme Corp", ProjectName: "New Site", BasePrice: dp("100")})
	require.NoError(t, err)

	_, err = f.svc.UploadFile(ctx, sale.ID, saledomain.UploadRequest{Kind: "invoice", Filename: "a.pdf", Size: 1, Body: strings.NewReader("x")})
	assert.ErrorIs(t, err, saledomain.ErrInvalidFileKind)
	_, err = f.svc.UploadFile(ctx, sale.ID, saledomain.UploadRequest{Kind: "receipt", Filename: "a.pdf", Size: MaxFileSize + 1, Body: strings.NewReader("x")})
	assert.ErrorIs(t, err, saledomain.ErrFileTooLarge)

	file, err := f.svc.UploadFile(ctx, sale.ID, saledomain.UploadRequest{
		Kind:        "receipt",
		Filename:    "../../Receipt.PNG",
		ContentType: "image/png",
		Size:        4,
		Body:        strings.NewReader("data"),
	})
	require.NoError(t, err)
	assert.Equal(t, "sales/acme-corp/new-site/receipt/"+file.ID+".png", file.ObjectKey)
	assert.True(t, f.store.Has(file.ObjectKey))

	require.NoError(t, f.svc.RemoveFile(ctx, sale.ID, file.ID))
	assert.False(t, f.store.Has(file.ObjectKey))
	assert.ErrorIs(t, f.svc.RemoveFile(ctx, sale.ID, file.ID), saledomain.ErrNotFound)

	kept, err := f.svc.UploadFile(ctx, sale.ID, saledomain.UploadRequest{Filename: "brief.docx", Size: 3, Body: strings.NewReader("doc")})
	require.NoError(t, err)
	assert.Equal(t, "attachment", kept.Kind)
	assert.Equal(t, 1, f.store.Len())

	require.NoError(t, f.svc.Delete(ctx, sale.ID))
	assert.Equal(t, 0, f.store.Len())
	_, err = f.svc.Get(ctx, sale.ID)
	assert.ErrorIs(t, err, saledomain.ErrNotFound)
}

func TestQuotePDFAndList(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	pkg, svcs := f.seedCatalog(t)

	sale, err := f.svc.Create(ctx, saledomain.CreateRequest{CustomerName: "Acme", ProjectName: "Web Site", BasePackageID: pkg.ID.String()})
	require.NoError(t, err)
	_, err = f.svc.AddExtraService(ctx, sale.ID, saledomain.ItemRequest{ExtraServiceID: svcs["seo"].ID.String()})
	require.NoError(t, err)

	doc, err := f.svc.QuotePDF(ctx, sale.ID)
	require.NoError(t, err)
	assert.Equal(t, "quote-web-site-"+sale.ID+".pdf", doc.Filename)
	assert.True(t, strings.HasPrefix(string(doc.Content), "%PDF"))

	_, err = f.svc.Create(ctx, saledomain.CreateRequest{CustomerName: "Globex", ProjectName: "CRM", BasePrice: dp("1")})
	require.NoError(t, err)

	all, err := f.svc.List(ctx, saledomain.ListRequest{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	filtered, err := f.svc.List(ctx, saledomain.ListRequest{Customer: "acm", Status: "draft"})
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, "Acme", filtered[0].CustomerName)
}
