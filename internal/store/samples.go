package store

import (
	"github.com/tra-portal/tra-portal/internal/services"
)

// Sample payloads shown when the backend is unreachable. Each call returns
// fresh values so no two snapshots share them.

func sampleTaxpayers() []services.Taxpayer {
	return []services.Taxpayer{
		{
			TIN:             "100234567",
			Name:            "Kilimanjaro Breweries Ltd",
			TaxpayerType:    "COMPANY",
			Region:          "Kilimanjaro",
			Sector:          "Manufacturing",
			Status:          services.TaxpayerActive,
			ComplianceScore: 92,
		},
		{
			TIN:             "100345678",
			Name:            "Dar Coastal Traders",
			TaxpayerType:    "COMPANY",
			Region:          "Dar es Salaam",
			Sector:          "Retail",
			Status:          services.TaxpayerActive,
			ComplianceScore: 78,
		},
		{
			TIN:             "200456789",
			Name:            "Amina Juma",
			TaxpayerType:    "INDIVIDUAL",
			Region:          "Arusha",
			Sector:          "Tourism",
			Status:          services.TaxpayerSuspended,
			ComplianceScore: 41,
		},
	}
}

func sampleComplianceDashboard() *services.ComplianceDashboard {
	return &services.ComplianceDashboard{
		OverallScore:          84.5,
		TotalTaxpayers:        15420,
		CompliantTaxpayers:    13029,
		NonCompliantTaxpayers: 2391,
		PendingAudits:         147,
		TotalPenalties:        2850000000,
		ByRegion: []services.RegionCompliance{
			{Region: "Dar es Salaam", Score: 88.2, Taxpayers: 6210},
			{Region: "Arusha", Score: 83.1, Taxpayers: 2140},
			{Region: "Mwanza", Score: 79.4, Taxpayers: 1985},
			{Region: "Dodoma", Score: 81.7, Taxpayers: 1320},
		},
		Trends: []services.TrendPoint{
			{Period: "2025-Q1", Score: 81.9},
			{Period: "2025-Q2", Score: 83.0},
			{Period: "2025-Q3", Score: 84.5},
		},
	}
}

func sampleRevenueDashboard() *services.RevenueDashboard {
	return &services.RevenueDashboard{
		TotalRevenue:   2450000000000,
		TargetRevenue:  2700000000000,
		CollectionRate: 90.7,
		ByTaxType: []services.RevenueBreakdown{
			{Category: "VAT", Amount: 980000000000},
			{Category: "INCOME_TAX", Amount: 860000000000},
			{Category: "CORPORATE_TAX", Amount: 410000000000},
			{Category: "EXCISE", Amount: 200000000000},
		},
		ByRegion: []services.RevenueBreakdown{
			{Category: "Dar es Salaam", Amount: 1470000000000},
			{Category: "Arusha", Amount: 320000000000},
			{Category: "Mwanza", Amount: 255000000000},
		},
		Monthly: []services.RevenuePoint{
			{Month: "2025-07", Amount: 198000000000, Target: 215000000000},
			{Month: "2025-08", Amount: 207000000000, Target: 220000000000},
			{Month: "2025-09", Amount: 221000000000, Target: 225000000000},
		},
	}
}

func sampleBlockchainStats() *services.BlockchainStats {
	return &services.BlockchainStats{
		TotalTransactions: 128450,
		TotalBlocks:       24310,
		ActiveNodes:       7,
		AverageBlockTime:  2.4,
		LastBlockHash:     "0x0000000000000000000000000000000000000000000000000000000000000000",
		NetworkStatus:     "OFFLINE",
	}
}
