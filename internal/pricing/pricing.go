// Package pricing looks up on-demand hourly prices for instance types
// through the AWS Pricing API. Lookups are best-effort: a type the API
// doesn't know is reported as absent, never as a failure.
package pricing

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/aws/session"
	awspricing "github.com/aws/aws-sdk-go/service/pricing"

	"github.com/lobot-sh/lobot/internal/cloud"
	"github.com/lobot-sh/lobot/internal/errors"
	"github.com/lobot-sh/lobot/internal/logger"
)

// pricingAPI is the slice of the Pricing service the client uses.
type pricingAPI interface {
	GetProductsWithContext(aws.Context, *awspricing.GetProductsInput, ...request.Option) (*awspricing.GetProductsOutput, error)
}

// Client queries on-demand prices. The Pricing API lives in us-east-1
// regardless of which region the priced instances run in.
type Client struct {
	api pricingAPI
	log logger.Logger
}

// New creates a pricing client on an existing session.
func New(sess *session.Session, log logger.Logger) *Client {
	if log == nil {
		log = logger.Noop()
	}
	api := awspricing.New(sess, aws.NewConfig().WithRegion("us-east-1"))
	return &Client{api: api, log: log}
}

// PricePerHour returns the on-demand hourly USD price for a Linux
// instance of the given type in the given region. The second return
// is false when the API has no price for the type.
func (c *Client) PricePerHour(ctx context.Context, instanceType, region string) (float64, bool, error) {
	location := cloud.LocationName(region)
	if location == "" {
		// No readable name known for this region; the Pricing API
		// filters on location names, so a lookup can't succeed.
		c.log.Debug("no pricing location known for region %s", region)
		return 0, false, nil
	}

	input := &awspricing.GetProductsInput{
		ServiceCode: aws.String("AmazonEC2"),
		Filters: []*awspricing.Filter{
			termMatch("location", location),
			termMatch("instanceType", instanceType),
			termMatch("operatingSystem", "Linux"),
			termMatch("preInstalledSw", "NA"),
			termMatch("tenancy", "Shared"),
			termMatch("capacitystatus", "Used"),
		},
		MaxResults: aws.Int64(1),
	}

	out, err := c.api.GetProductsWithContext(ctx, input)
	if err != nil {
		return 0, false, errors.Wrap(err, fmt.Sprintf("price lookup for %s failed", instanceType))
	}
	if len(out.PriceList) == 0 {
		return 0, false, nil
	}

	price, ok := parseOnDemandUSD(out.PriceList[0])
	return price, ok, nil
}

// Prices looks up several instance types, skipping any that fail.
// Lookups run a few at a time; the Pricing API throttles aggressively.
func (c *Client) Prices(ctx context.Context, instanceTypes []string, region string) map[string]float64 {
	const workers = 4

	var (
		mu     sync.Mutex
		wg     sync.WaitGroup
		result = make(map[string]float64, len(instanceTypes))
		jobs   = make(chan string)
	)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for instanceType := range jobs {
				price, ok, err := c.PricePerHour(ctx, instanceType, region)
				if err != nil {
					c.log.Debug("skipping price for %s: %v", instanceType, err)
					continue
				}
				if !ok {
					c.log.Debug("no on-demand price for %s in %s", instanceType, region)
					continue
				}
				mu.Lock()
				result[instanceType] = price
				mu.Unlock()
			}
		}()
	}

	for _, t := range instanceTypes {
		jobs <- t
	}
	close(jobs)
	wg.Wait()

	return result
}

func termMatch(field, value string) *awspricing.Filter {
	return &awspricing.Filter{
		Type:  aws.String("TERM_MATCH"),
		Field: aws.String(field),
		Value: aws.String(value),
	}
}

// parseOnDemandUSD walks a product document down to its on-demand USD
// rate: terms.OnDemand.<sku>.priceDimensions.<sku>.pricePerUnit.USD.
func parseOnDemandUSD(product aws.JSONValue) (float64, bool) {
	terms, ok := product["terms"].(map[string]interface{})
	if !ok {
		return 0, false
	}
	onDemand, ok := terms["OnDemand"].(map[string]interface{})
	if !ok {
		return 0, false
	}

	for _, rawTerm := range onDemand {
		term, ok := rawTerm.(map[string]interface{})
		if !ok {
			continue
		}
		dimensions, ok := term["priceDimensions"].(map[string]interface{})
		if !ok {
			continue
		}
		for _, rawDim := range dimensions {
			dim, ok := rawDim.(map[string]interface{})
			if !ok {
				continue
			}
			perUnit, ok := dim["pricePerUnit"].(map[string]interface{})
			if !ok {
				continue
			}
			usd, ok := perUnit["USD"].(string)
			if !ok {
				continue
			}
			price, err := strconv.ParseFloat(usd, 64)
			if err != nil || price <= 0 {
				continue
			}
			return price, true
		}
	}
	return 0, false
}
