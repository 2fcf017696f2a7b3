package calculator

import (
	"fmt"
	"math"
)

// Activity is a household activity the usage calculator knows about.
type Activity string

const (
	ActivityShower         Activity = "shower"
	ActivityDishwasher     Activity = "dishwasher"
	ActivityWashingMachine Activity = "washingMachine"
	ActivityToilet         Activity = "toilet"
	ActivityFaucet         Activity = "faucet"
	ActivityCarWash        Activity = "carWash"
	ActivityLawnWatering   Activity = "lawnWatering"
)

// activityRate describes how one activity converts into liters per day.
type activityRate struct {
	litersPerUnit float64 // liters per minute, load, flush or wash
	perDay        float64 // converts the input's period to a day
	max           int     // highest accepted input
}

var activityRates = map[Activity]activityRate{
	ActivityShower:         {litersPerUnit: 9.5, perDay: 1, max: 60},
	ActivityDishwasher:     {litersPerUnit: 20, perDay: 1.0 / 7, max: 14},
	ActivityWashingMachine: {litersPerUnit: 60, perDay: 1.0 / 7, max: 14},
	ActivityToilet:         {litersPerUnit: 6, perDay: 1, max: 20},
	ActivityFaucet:         {litersPerUnit: 5.7, perDay: 1, max: 60},
	ActivityCarWash:        {litersPerUnit: 200, perDay: 1.0 / 30, max: 12},
	ActivityLawnWatering:   {litersPerUnit: 15, perDay: 1, max: 60},
}

// activityOrder fixes the order in which inputs are checked and reported.
var activityOrder = []Activity{
	ActivityShower,
	ActivityDishwasher,
	ActivityWashingMachine,
	ActivityToilet,
	ActivityFaucet,
	ActivityCarWash,
	ActivityLawnWatering,
}

// UsageInput holds a person's household habits. Each field is expressed in
// the period named by its field.
type UsageInput struct {
	ShowerMinutesPerDay        int `json:"showerMinutesPerDay"`
	DishwasherLoadsPerWeek     int `json:"dishwasherLoadsPerWeek"`
	WashingMachineLoadsPerWeek int `json:"washingMachineLoadsPerWeek"`
	ToiletFlushesPerDay        int `json:"toiletFlushesPerDay"`
	FaucetMinutesPerDay        int `json:"faucetMinutesPerDay"`
	CarWashesPerMonth          int `json:"carWashesPerMonth"`
	LawnWateringMinutesPerDay  int `json:"lawnWateringMinutesPerDay"`
}

func (in UsageInput) values() map[Activity]int {
	return map[Activity]int{
		ActivityShower:         in.ShowerMinutesPerDay,
		ActivityDishwasher:     in.DishwasherLoadsPerWeek,
		ActivityWashingMachine: in.WashingMachineLoadsPerWeek,
		ActivityToilet:         in.ToiletFlushesPerDay,
		ActivityFaucet:         in.FaucetMinutesPerDay,
		ActivityCarWash:        in.CarWashesPerMonth,
		ActivityLawnWatering:   in.LawnWateringMinutesPerDay,
	}
}

// InputError reports an activity input outside its accepted range.
type InputError struct {
	Activity Activity
	Value    int
	Max      int
}

func (e *InputError) Error() string {
	return fmt.Sprintf("%s must be between 0 and %d, got %d", e.Activity, e.Max, e.Value)
}

// Rating grades a daily usage figure.
type Rating struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

// UsageResult is the outcome of a usage calculation. All figures are liters.
type UsageResult struct {
	Daily     int              `json:"daily"`
	Weekly    int              `json:"weekly"`
	Monthly   int              `json:"monthly"`
	Yearly    int              `json:"yearly"`
	Breakdown map[Activity]int `json:"breakdown"`
	Rating    Rating           `json:"rating"`
}

// CalculateUsage estimates household water consumption.
// Every input must lie within its activity's range; the first violation is
// returned as an *InputError.
func CalculateUsage(in UsageInput) (*UsageResult, error) {
	values := in.values()
	for _, a := range activityOrder {
		if v, limit := values[a], activityRates[a].max; v < 0 || v > limit {
			return nil, &InputError{Activity: a, Value: v, Max: limit}
		}
	}

	result := &UsageResult{Breakdown: make(map[Activity]int, len(activityOrder))}
	var daily float64
	for _, a := range activityOrder {
		rate := activityRates[a]
		liters := float64(values[a]) * rate.litersPerUnit * rate.perDay
		result.Breakdown[a] = int(math.Round(liters))
		daily += liters
	}

	result.Daily = int(math.Round(daily))
	result.Weekly = int(math.Round(daily * 7))
	result.Monthly = int(math.Round(daily * 30))
	result.Yearly = int(math.Round(daily * 365))
	result.Rating = RateUsage(result.Daily)
	return result, nil
}

// RateUsage grades daily usage in liters.
func RateUsage(daily int) Rating {
	switch {
	case daily < 100:
		return Rating{Level: "excellent", Message: "Excellent! Very water conscious."}
	case daily < 150:
		return Rating{Level: "good", Message: "Good! Room for some improvements."}
	case daily < 200:
		return Rating{Level: "average", Message: "Average. Consider water-saving habits."}
	case daily < 300:
		return Rating{Level: "high", Message: "High usage. Time to make changes!"}
	default:
		return Rating{Level: "very-high", Message: "Very high usage. Immediate action needed!"}
	}
}
