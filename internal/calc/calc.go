/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package calc computes commission, GST and TDS figures for vendor invoices and formats them.
package calc

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

type CommissionType string

const (
	Percentage CommissionType = "percentage"
	Fixed      CommissionType = "fixed"
	Tiered     CommissionType = "tiered"
)

// Rates applied by Generate when the caller does not choose them.
const (
	DefaultGSTRate = 18
	DefaultTDSRate = 5
)

var ErrMissingFields = errors.New("missing required fields")

type Input struct {
	OrderValue     float64        `json:"orderValue"`
	CommissionRate float64        `json:"commissionRate"`
	CommissionType CommissionType `json:"commissionType"`
	GSTRate        float64        `json:"gstRate"`
	TDSRate        float64        `json:"tdsRate"`
	VendorPAN      string         `json:"vendorPAN,omitempty"`
}

type Breakdown struct {
	BaseCommission  float64 `json:"baseCommission"`
	GSTOnCommission float64 `json:"gstOnCommission"`
	TDSDeduction    float64 `json:"tdsDeduction"`
}

type Result struct {
	OrderTotal       float64   `json:"orderTotal"`
	CommissionAmount float64   `json:"commissionAmount"`
	GSTAmount        float64   `json:"gstAmount"`
	TDSAmount        float64   `json:"tdsAmount"`
	FinalPayout      float64   `json:"finalPayout"`
	Breakdown        Breakdown `json:"breakdown"`
}

// Calculate derives the commission and tax lines. GST is charged on the commission and TDS is
// only withheld when the vendor has a PAN. The payout adds TDS back, matching the figures the
// designer has always printed.
func Calculate(in Input) Result {
	var base float64
	switch in.CommissionType {
	case Fixed:
		base = in.CommissionRate
	case Tiered:
		switch {
		case in.OrderValue <= 10000:
			base = in.OrderValue * 3 / 100
		case in.OrderValue <= 50000:
			base = in.OrderValue * 5 / 100
		default:
			base = in.OrderValue * 7 / 100
		}
	default:
		base = in.OrderValue * in.CommissionRate / 100
	}
	gst := base * in.GSTRate / 100
	var tds float64
	if strings.TrimSpace(in.VendorPAN) != "" {
		tds = base * in.TDSRate / 100
	}
	return Result{
		OrderTotal:       in.OrderValue,
		CommissionAmount: base,
		GSTAmount:        gst,
		TDSAmount:        tds,
		FinalPayout:      in.OrderValue - base - gst + tds,
		Breakdown:        Breakdown{BaseCommission: base, GSTOnCommission: gst, TDSDeduction: tds},
	}
}

var inr = message.NewPrinter(language.MustParse("en-IN"))

// FormatCurrency renders amount in rupees with two decimals and Indian digit grouping.
func FormatCurrency(amount float64) string {
	sign := ""
	if amount < 0 {
		sign, amount = "-", -amount
	}
	return sign + "₹" + inr.Sprint(number.Decimal(amount, number.Scale(2)))
}

// InvoiceNumber returns prefix-YYMM-NNN. intn supplies the random suffix; nil uses math/rand.
func InvoiceNumber(prefix string, now time.Time, intn func(int) int) string {
	if prefix == "" {
		prefix = "INV"
	}
	if intn == nil {
		intn = rand.IntN
	}
	return fmt.Sprintf("%s-%s-%03d", prefix, now.Format("0601"), intn(1000))
}

// GenerateRequest is an invoice draft request for a vendor order.
type GenerateRequest struct {
	OrderValue     float64        `json:"orderValue"`
	CommissionRate float64        `json:"commissionRate"`
	CommissionType CommissionType `json:"commissionType,omitempty"`
	VendorID       string         `json:"vendorId"`
	TemplateID     string         `json:"templateId,omitempty"`
	VendorPAN      string         `json:"vendorPAN,omitempty"`
}

type Invoice struct {
	InvoiceNumber string    `json:"invoiceNumber"`
	VendorID      string    `json:"vendorId"`
	TemplateID    string    `json:"templateId,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	Status        string    `json:"status"`
	Result
}

// Generate drafts an invoice with the default GST and TDS rates.
func Generate(req GenerateRequest, now time.Time, intn func(int) int) (Invoice, error) {
	if req.OrderValue == 0 || req.CommissionRate == 0 || req.VendorID == "" {
		return Invoice{}, ErrMissingFields
	}
	if req.CommissionType == "" {
		req.CommissionType = Percentage
	}
	res := Calculate(Input{
		OrderValue:     req.OrderValue,
		CommissionRate: req.CommissionRate,
		CommissionType: req.CommissionType,
		GSTRate:        DefaultGSTRate,
		TDSRate:        DefaultTDSRate,
		VendorPAN:      req.VendorPAN,
	})
	return Invoice{
		InvoiceNumber: InvoiceNumber("", now, intn),
		VendorID:      req.VendorID,
		TemplateID:    req.TemplateID,
		CreatedAt:     now,
		Status:        "draft",
		Result:        res,
	}, nil
}
