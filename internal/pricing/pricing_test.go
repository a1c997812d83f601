package pricing

import (
	"context"
	stderrors "errors"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	awspricing "github.com/aws/aws-sdk-go/service/pricing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lobot-sh/lobot/internal/logger"
)

// productDoc builds a minimal price list document with the given USD
// rate.
func productDoc(usd string) aws.JSONValue {
	return aws.JSONValue{
		"product": map[string]interface{}{
			"attributes": map[string]interface{}{"instanceType": "t3.medium"},
		},
		"terms": map[string]interface{}{
			"OnDemand": map[string]interface{}{
				"SKU123.JRTCKXETXF": map[string]interface{}{
					"priceDimensions": map[string]interface{}{
						"SKU123.JRTCKXETXF.6YS6EN2CT7": map[string]interface{}{
							"pricePerUnit": map[string]interface{}{"USD": usd},
						},
					},
				},
			},
		},
	}
}

type fakePricingAPI struct {
	mu      sync.Mutex
	outputs map[string]*awspricing.GetProductsOutput
	err     error
	calls   []string
}

func (f *fakePricingAPI) GetProductsWithContext(ctx aws.Context, input *awspricing.GetProductsInput, opts ...request.Option) (*awspricing.GetProductsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var instanceType string
	for _, filter := range input.Filters {
		if aws.StringValue(filter.Field) == "instanceType" {
			instanceType = aws.StringValue(filter.Value)
		}
	}
	f.calls = append(f.calls, instanceType)

	if f.err != nil {
		return nil, f.err
	}
	if out, ok := f.outputs[instanceType]; ok {
		return out, nil
	}
	return &awspricing.GetProductsOutput{}, nil
}

func newClient(api pricingAPI) *Client {
	return &Client{api: api, log: logger.Noop()}
}

func TestPricePerHour(t *testing.T) {
	api := &fakePricingAPI{outputs: map[string]*awspricing.GetProductsOutput{
		"t3.medium": {PriceList: []aws.JSONValue{productDoc("0.0416000000")}},
	}}
	c := newClient(api)

	price, ok, err := c.PricePerHour(context.Background(), "t3.medium", "us-east-1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.InDelta(t, 0.0416, price, 1e-9)
}

func TestPricePerHourUnknownType(t *testing.T) {
	c := newClient(&fakePricingAPI{})

	_, ok, err := c.PricePerHour(context.Background(), "t9.imaginary", "us-east-1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPricePerHourUnknownRegionSkipsLookup(t *testing.T) {
	api := &fakePricingAPI{}
	c := newClient(api)

	_, ok, err := c.PricePerHour(context.Background(), "t3.medium", "xx-nowhere-9")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, api.calls, "no API call for a region with no location name")
}

func TestPricesSkipsFailures(t *testing.T) {
	api := &fakePricingAPI{outputs: map[string]*awspricing.GetProductsOutput{
		"t3.medium": {PriceList: []aws.JSONValue{productDoc("0.0416")}},
		"m5.large":  {PriceList: []aws.JSONValue{productDoc("0.096")}},
	}}
	c := newClient(api)

	prices := c.Prices(context.Background(), []string{"t3.medium", "m5.large", "t9.imaginary"}, "us-east-1")
	assert.Len(t, prices, 2)
	assert.InDelta(t, 0.0416, prices["t3.medium"], 1e-9)
	assert.InDelta(t, 0.096, prices["m5.large"], 1e-9)
}

func TestPricesAllFailuresYieldEmptyMap(t *testing.T) {
	c := newClient(&fakePricingAPI{err: stderrors.New("throttled")})

	prices := c.Prices(context.Background(), []string{"t3.medium"}, "us-east-1")
	assert.Empty(t, prices)
}

func TestParseOnDemandUSD(t *testing.T) {
	tests := []struct {
		name string
		doc  aws.JSONValue
		want float64
		ok   bool
	}{
		{"valid", productDoc("1.50"), 1.5, true},
		{"zero price skipped", productDoc("0.0000000000"), 0, false},
		{"garbage rate", productDoc("lots"), 0, false},
		{"missing terms", aws.JSONValue{"product": map[string]interface{}{}}, 0, false},
		{"empty document", aws.JSONValue{}, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := parseOnDemandUSD(tt.doc)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.InDelta(t, tt.want, got, 1e-9)
			}
		})
	}
}
