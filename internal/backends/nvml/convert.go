package nvml

const milliWattsPerWatt = 1000

// milliwattsToWatts converts NVML's milliwatt readings to watts
func milliwattsToWatts(mw uint32) float64 {
	return float64(mw) / milliWattsPerWatt
}
