package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/nergy-se/solardivert/pkg/classify"
	"github.com/nergy-se/solardivert/pkg/esmart"
)

func main() {
	address := flag.String("addr", "", "tcp address of a serial bridge")
	device := flag.String("serial", "", "serial device of the charge controller")
	timeout := flag.Duration("timeout", time.Second, "poll timeout")
	cells := flag.Int("cells", 24, "battery cells, used to classify the reading")
	asJSON := flag.Bool("json", false, "print the reading as json")
	flag.Parse()

	var client *esmart.Client
	var err error
	switch {
	case *device != "":
		client, err = esmart.OpenSerial(*device, *timeout)
	case *address != "":
		client, err = esmart.DialTCP(*address, *timeout)
	default:
		log.Println("one of -addr or -serial is required")
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		log.Fatal(err)
	}
	defer client.Close()

	r, err := client.Poll()
	if err != nil {
		log.Println("error was: ", err)
		return
	}

	if *asJSON {
		b, err := json.MarshalIndent(r, "", "  ")
		if err != nil {
			log.Fatal(err)
		}
		fmt.Println(string(b))
		return
	}

	battery := classify.Battery{Cells: *cells, FullVolt: 14.2, FullVoltCV: 13.8, LowVolt: 12.4, CriticalVolt: 12.0, FullPower: 600}
	fmt.Printf("mode: %s\n", r.Mode)
	fmt.Printf("pv: %.1fV\n", r.PVVoltage)
	fmt.Printf("battery: %.1fV %.1fA %dW %d%%\n", r.BatteryVoltage, r.ChargeCurrent, r.ChargePower, r.StateOfCharge)
	fmt.Printf("load: %.1fV %.1fA %dW\n", r.LoadVoltage, r.LoadCurrent, r.LoadPower)
	fmt.Printf("temperature: battery %d°C internal %d°C\n", r.BatteryTempC, r.InternalTempC)
	fmt.Printf("co2 saved: %dg\n", r.CO2Grams)
	fmt.Printf("event: %s\n", battery.Scale(55, 54).Charge(r))
}
