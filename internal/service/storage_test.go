package service

import (
	"testing"
	"time"
)

func TestCalculateStorage(t *testing.T) {
	arrived := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	cases := []struct {
		name        string
		days        int
		paidAfter   int
		unpaid      int
		fee         int64
		untilDelete int
		expired     bool
		canShip     bool
		status      string
	}{
		{name: "within free period", days: 20, unpaid: 0, fee: 0, untilDelete: 10, canShip: true, status: StorageStatusFree},
		{name: "last free day", days: 60, unpaid: 0, fee: 0, untilDelete: 10, canShip: true, status: StorageStatusFree},
		{name: "three unpaid days", days: 63, unpaid: 3, fee: 90, untilDelete: 7, status: StorageStatusPaid},
		{name: "one day before disposal", days: 69, unpaid: 9, fee: 270, untilDelete: 1, status: StorageStatusPaid},
		{name: "expired", days: 70, unpaid: 10, fee: 300, untilDelete: 0, expired: true, status: StorageStatusExpired},
		{name: "paid two days ago", days: 80, paidAfter: 78, unpaid: 2, fee: 60, untilDelete: 8, status: StorageStatusPaid},
		{name: "paid today", days: 80, paidAfter: 80, unpaid: 0, fee: 0, untilDelete: 10, canShip: true, status: StorageStatusPaid},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			now := arrived.AddDate(0, 0, tc.days).Add(time.Hour)
			var lastPayment *time.Time
			if tc.paidAfter > 0 {
				paid := arrived.AddDate(0, 0, tc.paidAfter)
				lastPayment = &paid
			}
			info := CalculateStorage(arrived, lastPayment, now)
			if info.UnpaidDays != tc.unpaid || info.CurrentFee.Int64() != tc.fee {
				t.Fatalf("unpaid=%d fee=%s, want %d/%d", info.UnpaidDays, info.CurrentFee.String(), tc.unpaid, tc.fee)
			}
			if info.DaysUntilDisposal != tc.untilDelete {
				t.Fatalf("days until disposal want %d got %d", tc.untilDelete, info.DaysUntilDisposal)
			}
			if info.IsExpired != tc.expired || info.CanShip != tc.canShip || info.Status != tc.status {
				t.Fatalf("unexpected flags: %+v", info)
			}
		})
	}
}

func TestCalculateStorageFutureArrival(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	info := CalculateStorage(now.Add(48*time.Hour), nil, now)
	if info.TotalDays != 0 || info.FreeDaysRemaining != 60 || !info.CanShip {
		t.Fatalf("future arrival must count as day zero: %+v", info)
	}
}
