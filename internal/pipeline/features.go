package pipeline

import (
	"math"
	"sort"
	"strings"
	"time"

	dbpkg "clientpulse/internal/db"
)

// SentinelDays marks "days since/until" features where no measurement
// exists: the event never happened, or lies beyond any practical
// horizon. Stored verbatim; never imputed.
const SentinelDays = 999

const (
	// trendWeeks is the regression window: weekly bucket 0 is the
	// current week, bucket 11 is twelve weeks ago.
	trendWeeks = 12

	// maxGapSessions caps how many recent completed sessions feed the
	// gap statistics.
	maxGapSessions = 50

	hoursPerDay = 24
)

const completedStatus = "Completed"

// BuildFeatures computes the full feature vector for one package row,
// relative to now. Missing joins (no contact, calls or deals) degrade
// the affected features to their defaults; they never fail the client.
func BuildFeatures(pkg dbpkg.ClientPackage, snap *Snapshot, now time.Time) dbpkg.FeatureVector {
	email := strings.ToLower(pkg.ClientEmail)

	clientSessions := snap.SessionsByEmail[email]
	contact, hasContact := snap.ContactsByEmail[email]

	var clientCalls []dbpkg.CallRecord
	if hasContact && contact.Phone != "" {
		clientCalls = snap.CallsByNumber[contact.Phone]
	}
	var clientDeals []dbpkg.Deal
	if hasContact && contact.CRMID != "" {
		clientDeals = snap.DealsByContactID[contact.CRMID]
	}

	// Completed sessions, newest first.
	completed := make([]dbpkg.TrainingSession, 0, len(clientSessions))
	for _, s := range clientSessions {
		if s.Status == completedStatus {
			completed = append(completed, s)
		}
	}
	sort.Slice(completed, func(i, j int) bool {
		return completed[i].TrainingDate.After(completed[j].TrainingDate)
	})

	gaps := sessionGaps(completed)
	avgGap := float64(SentinelDays)
	maxGap := float64(SentinelDays)
	if len(gaps) > 0 {
		avgGap = mean(gaps)
		maxGap = gaps[0]
		for _, g := range gaps[1:] {
			if g > maxGap {
				maxGap = g
			}
		}
	}

	consistency := 0.0
	if len(gaps) > 1 {
		var sum float64
		for _, g := range gaps {
			sum += (g - avgGap) * (g - avgGap)
		}
		consistency = math.Sqrt(sum / float64(len(gaps)))
	}

	buckets := weeklyBuckets(completed, now)
	recent4w := sumBuckets(buckets, 0, 4)
	prev4w := sumBuckets(buckets, 4, 8)
	oldest4w := sumBuckets(buckets, 8, 12)

	cancelled := 0
	noShows := 0
	for _, s := range clientSessions {
		status := strings.ToLower(s.Status)
		if strings.Contains(status, "cancel") {
			cancelled++
		}
		if strings.Contains(status, "no show") || strings.Contains(status, "noshow") {
			noShows++
		}
	}
	cancellationRate := 0.0
	if len(clientSessions) > 0 {
		cancellationRate = float64(cancelled) / float64(len(clientSessions))
	}

	weekendCount, weekdayCount := 0, 0
	for _, s := range completed {
		switch s.TrainingDate.Weekday() {
		case time.Saturday, time.Sunday:
			weekendCount++
		default:
			weekdayCount++
		}
	}
	weekendRatio := 0.0
	if weekdayCount > 0 {
		weekendRatio = float64(weekendCount) / float64(weekdayCount)
	}

	remainingPct := 0.0
	if pkg.PackSize > 0 {
		remainingPct = float64(pkg.RemainingSessions) / float64(pkg.PackSize)
	}
	burnRate := pkg.SessionsPerWeek
	daysToDepletion := SentinelDays
	if burnRate > 0 {
		daysToDepletion = int(math.Round(float64(pkg.RemainingSessions) / burnRate * 7))
	}
	daysToExpiry := SentinelDays
	if pkg.ExpiryDate != nil {
		daysToExpiry = int(math.Round(math.Max(0, daysBetween(now, *pkg.ExpiryDate))))
	}

	daysSinceLastSession := SentinelDays
	if len(completed) > 0 {
		daysSinceLastSession = int(math.Floor(daysBetween(completed[0].TrainingDate, now)))
	}

	daysSinceLastCall := SentinelDays
	if len(clientCalls) > 0 {
		latest := clientCalls[0].StartedAt
		for _, c := range clientCalls[1:] {
			if c.StartedAt.After(latest) {
				latest = c.StartedAt
			}
		}
		daysSinceLastCall = int(math.Floor(daysBetween(latest, now)))
	}

	var leadTimes []float64
	futureBookings := 0
	for _, s := range clientSessions {
		if s.TrainingDate.After(now) && !strings.Contains(strings.ToLower(s.Status), "cancel") {
			futureBookings++
			leadTimes = append(leadTimes, daysBetween(now, s.TrainingDate))
		}
	}
	bookingLeadAvg := 0.0
	if len(leadTimes) > 0 {
		bookingLeadAvg = mean(leadTimes)
	}

	monthsAsCustomer := 1.0
	if hasContact && contact.JoinedAt != nil {
		monthsAsCustomer = math.Max(1, daysBetween(*contact.JoinedAt, now)/30)
	}

	coachSet := make(map[string]struct{})
	for _, s := range clientSessions {
		if s.CoachName != "" {
			coachSet[s.CoachName] = struct{}{}
		}
	}
	uniqueCoaches := len(coachSet)
	coachChanges := 0
	if uniqueCoaches > 1 {
		coachChanges = uniqueCoaches - 1
	}

	coachTenure := 0
	if len(completed) > 0 {
		first := completed[len(completed)-1].TrainingDate
		coachTenure = int(math.Floor(daysBetween(first, now)))
	}

	dealsWon, dealsLost := 0, 0
	totalDealValue := 0.0
	for _, d := range clientDeals {
		stage := strings.ToLower(d.Stage)
		if strings.Contains(stage, "won") || strings.Contains(stage, "closed") {
			dealsWon++
		}
		if strings.Contains(stage, "lost") {
			dealsLost++
		}
		totalDealValue += d.Value()
	}

	return dbpkg.FeatureVector{
		SessionsLast7d:         countWithinDays(completed, now, 7),
		SessionsLast30d:        countWithinDays(completed, now, 30),
		SessionsLast90d:        countWithinDays(completed, now, 90),
		SessionTrend:           trendSlope(buckets),
		AvgGapDays:             round1(avgGap),
		MaxGapDays:             round1(maxGap),
		CancellationRate:       round3(cancellationRate),
		NoShowCount:            noShows,
		PreferredTimeSlot:      preferredTimeSlot(completed),
		TotalCompletedSessions: len(completed),

		RemainingPct:      round3(remainingPct),
		RemainingSessions: pkg.RemainingSessions,
		PackSize:          pkg.PackSize,
		BurnRate:          round2(burnRate),
		DaysToDepletion:   daysToDepletion,
		DaysToExpiry:      daysToExpiry,
		PackageValue:      pkg.PackageValue,

		DaysSinceLastSession: daysSinceLastSession,
		DaysSinceLastCall:    daysSinceLastCall,
		FutureBookings:       futureBookings,
		BookingLeadTimeAvg:   round1(bookingLeadAvg),

		TotalPaid:        pkg.PackageValue,
		MonthsAsCustomer: round1(monthsAsCustomer),

		CoachTenure:      coachTenure,
		CoachChangeCount: coachChanges,
		UniqueCoaches:    uniqueCoaches,
		CoachName:        pkg.LastCoach,

		WeekendWeekdayRatio:  round2(weekendRatio),
		ConsistencyScore:     round1(consistency),
		MomentumVelocity:     recent4w - prev4w,
		MomentumAcceleration: (recent4w - prev4w) - (prev4w - oldest4w),

		DealsWon:       dealsWon,
		DealsLost:      dealsLost,
		TotalDealValue: totalDealValue,
	}
}

// countWithinDays counts completed sessions whose age is under the given
// number of days.
func countWithinDays(completed []dbpkg.TrainingSession, now time.Time, days int) int {
	n := 0
	window := time.Duration(days) * hoursPerDay * time.Hour
	for _, s := range completed {
		if now.Sub(s.TrainingDate) < window {
			n++
		}
	}
	return n
}

// sessionGaps returns the day lengths between consecutive completed
// sessions (newest first), capped at the most recent 50 sessions.
// Same-day duplicates yield a non-positive gap and are dropped.
func sessionGaps(completed []dbpkg.TrainingSession) []float64 {
	var gaps []float64
	for i := 1; i < len(completed) && i < maxGapSessions; i++ {
		gap := daysBetween(completed[i].TrainingDate, completed[i-1].TrainingDate)
		if gap > 0 {
			gaps = append(gaps, gap)
		}
	}
	return gaps
}

// weeklyBuckets counts completed sessions per week: bucket 0 is the
// current week, bucket 11 is twelve weeks ago. Future-dated sessions
// fall before bucket 0 and are excluded.
func weeklyBuckets(completed []dbpkg.TrainingSession, now time.Time) [trendWeeks]int {
	var buckets [trendWeeks]int
	for _, s := range completed {
		weeksAgo := int(math.Floor(daysBetween(s.TrainingDate, now) / 7))
		if weeksAgo >= 0 && weeksAgo < trendWeeks {
			buckets[weeksAgo]++
		}
	}
	return buckets
}

// trendSlope is the ordinary-least-squares slope of weekly session count
// against bucket index. Index increases going backward in time, so a
// positive slope means older weeks had more sessions: engagement is
// declining. Do not flip the sign.
func trendSlope(buckets [trendWeeks]int) float64 {
	n := float64(len(buckets))
	xMean := (n - 1) / 2
	var total float64
	for _, c := range buckets {
		total += float64(c)
	}
	yMean := total / n

	var num, den float64
	for i, c := range buckets {
		dx := float64(i) - xMean
		num += dx * (float64(c) - yMean)
		den += dx * dx
	}
	if den == 0 {
		return 0
	}
	return num / den
}

func sumBuckets(buckets [trendWeeks]int, from, to int) int {
	sum := 0
	for i := from; i < to; i++ {
		sum += buckets[i]
	}
	return sum
}

// preferredTimeSlot is the modal time slot over completed sessions, or
// "" when no session carries one. Ties keep the earlier-seen slot.
func preferredTimeSlot(completed []dbpkg.TrainingSession) string {
	counts := make(map[string]int)
	var order []string
	for _, s := range completed {
		if s.TimeSlot == "" {
			continue
		}
		if _, seen := counts[s.TimeSlot]; !seen {
			order = append(order, s.TimeSlot)
		}
		counts[s.TimeSlot]++
	}

	best := ""
	bestCount := 0
	for _, slot := range order {
		if counts[slot] > bestCount {
			best = slot
			bestCount = counts[slot]
		}
	}
	return best
}

func daysBetween(from, to time.Time) float64 {
	return to.Sub(from).Hours() / hoursPerDay
}

func mean(vals []float64) float64 {
	var sum float64
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }
func round2(v float64) float64 { return math.Round(v*100) / 100 }
func round3(v float64) float64 { return math.Round(v*1000) / 1000 }
