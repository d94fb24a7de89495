package productdata

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mkstore/procurement_backend/cms"
	"github.com/mkstore/procurement_backend/config"
	"github.com/mkstore/procurement_backend/models"
	"github.com/mkstore/procurement_backend/operations"
	"github.com/mkstore/procurement_backend/utils"
	"github.com/shopspring/decimal"
)

type foundationResponse struct {
	ObjectivePrice decimal.Decimal `json:"objectivePrice"`
	TotalPrice     decimal.Decimal `json:"totalPrice"`
	Supporter      int64           `json:"supporter"`
	CloseOn        string          `json:"closeOn"`
}

type ruleResponse struct {
	cms.Rule
	Schedule operations.Schedule `json:"schedule"`
}

type productResponse struct {
	ID          string             `json:"id"`
	ProductCode string             `json:"productCode"`
	ProductName string             `json:"productName"`
	Variants    []cms.Variant      `json:"variants"`
	SkuLabel    *string            `json:"skuLabel"`
	Foundation  foundationResponse `json:"foundation"`
	Rule        ruleResponse       `json:"rule"`
}

// ProductDataHandler merges the content-store product configuration with
// order-side funding aggregates and the current delivery schedule. Read-only,
// CORS-open; backs the storefront delivery-date widget.
func ProductDataHandler(products operations.ProductSource) gin.HandlerFunc {
	return func(c *gin.Context) {
		productID := c.Param("productId")

		product, err := products.Product(c.Request.Context(), productID)
		if err != nil {
			if errors.Is(err, utils.ErrorRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"message": "Not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
			return
		}

		funding := models.ProductFunding{}
		if db := config.GetDB(); db != nil {
			funding, err = models.ProductFundingAggregate(c.Request.Context(), db, "gid://shopify/Product/"+productID)
			if err != nil {
				config.LogError(config.GetLogger(), "handlers.go", "ProductDataHandler", "Aggregating fundings", productID, err)
				funding = models.ProductFunding{}
			}
		}

		schedule := operations.MakeSchedule(
			time.Now(),
			product.Rule.LeadDays,
			product.Rule.CyclePurchase.Value,
			product.Rule.CustomSchedules,
		)

		c.JSON(http.StatusOK, productResponse{
			ID:          product.ID,
			ProductCode: product.ProductCode,
			ProductName: product.ProductName,
			Variants:    product.Variants,
			SkuLabel:    product.SkuLabel,
			Foundation: foundationResponse{
				ObjectivePrice: product.Foundation.ObjectivePrice,
				TotalPrice:     product.Foundation.TotalPrice.Add(funding.Price),
				Supporter:      product.Foundation.Supporter + funding.Supporters,
				CloseOn:        product.Foundation.CloseOn,
			},
			Rule: ruleResponse{
				Rule:     product.Rule,
				Schedule: schedule,
			},
		})
	}
}
