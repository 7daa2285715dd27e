// Package domain turns baseline fit requests into fit results for ResStock
// buildings.
//
// # Data Source
//
// Building load profiles and weather come from the NREL End-Use Load Profiles
// data lake (ResStock AMY2018 release 2) on OEDI:
//
//	timeseries_individual_buildings/by_state/upgrade=<u>/state=<ST>/<bldg>-<u>.parquet
//	weather/state=<ST>/<county>_2018.csv
//
// Upstream producers read the parquet loads and publish them inline in a
// FitRequest. Weather is either inline or fetched by county through a
// [WeatherSource].
//
// # ResStock Data Conventions
//
// Timestamps:
//
//	Both loads and weather are stamped at the END of their interval.
//	Loads are 15-minute energy totals; producers shift them back 15 minutes
//	and sum to hourly. Weather rows are hourly and are shifted back one hour.
//	Neither carries a zone; the series are wall-clock time in Etc/GMT+4
//	(UTC-4, no daylight saving), which is the default request timezone.
//
// Units:
//
//	Usage is kWh (out.electricity.total.energy_consumption).
//	Weather is "Dry Bulb Temperature [°C]" and is converted to °F, the unit
//	the model's bin edges and degree-hour balance points are expressed in.
//
// Zero readings:
//
//	For electricity a zero-kWh hour is a metering gap, so zero baseline
//	hours are dropped before fitting. They still appear in the reporting
//	day and are excluded from MAPE.
//
// # Failure Reasons
//
// A request that cannot be fitted still produces a [FitResult] with status
// "failed" and one of the FailureReason values, so consumers always receive
// an answer for every request they publish.
package domain
