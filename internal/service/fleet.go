package service

import (
	"context"
	"fmt"
	"sort"

	"github.com/Rodovar-GPS/GPS/internal/storage"
)

// maintenanceWarningKm is how early a WARNING is raised before the next
// scheduled service.
const maintenanceWarningKm = 500

// Alert severities.
const (
	SeverityUrgent  = "URGENT"
	SeverityWarning = "WARNING"
)

// MaintenanceAlert flags a vehicle due or overdue for service.
type MaintenanceAlert struct {
	DriverID     string `json:"driver_id"`
	DriverName   string `json:"driver_name"`
	VehiclePlate string `json:"vehicle_plate,omitempty"`
	Severity     string `json:"severity"`
	// RemainingKm is negative when the service is overdue.
	RemainingKm int    `json:"remaining_km"`
	Message     string `json:"message"`
}

// FleetService reports on vehicle maintenance.
type FleetService struct {
	drivers storage.DriversRepository
}

func NewFleetService(drivers storage.DriversRepository) *FleetService {
	return &FleetService{drivers: drivers}
}

// MaintenanceAlerts returns one alert per driver whose vehicle is within
// maintenanceWarningKm of, or past, its next service. Drivers without both
// mileages are skipped. Urgent alerts come first.
func (s *FleetService) MaintenanceAlerts(ctx context.Context) ([]MaintenanceAlert, error) {
	drivers, err := s.drivers.ListDrivers(ctx)
	if err != nil {
		return nil, fmt.Errorf("service: MaintenanceAlerts: %w", err)
	}

	alerts := make([]MaintenanceAlert, 0)
	for _, d := range drivers {
		if a, ok := maintenanceAlert(d); ok {
			alerts = append(alerts, a)
		}
	}
	sort.SliceStable(alerts, func(i, j int) bool {
		return alerts[i].RemainingKm < alerts[j].RemainingKm
	})
	return alerts, nil
}

func maintenanceAlert(d storage.Driver) (MaintenanceAlert, bool) {
	if d.CurrentMileage == 0 || d.NextMaintenanceMileage == 0 {
		return MaintenanceAlert{}, false
	}
	diff := d.NextMaintenanceMileage - d.CurrentMileage
	a := MaintenanceAlert{
		DriverID:     d.ID,
		DriverName:   d.Name,
		VehiclePlate: d.VehiclePlate,
		RemainingKm:  diff,
	}
	switch {
	case diff <= 0:
		a.Severity = SeverityUrgent
		a.Message = fmt.Sprintf("maintenance overdue by %d km", -diff)
	case diff <= maintenanceWarningKm:
		a.Severity = SeverityWarning
		a.Message = fmt.Sprintf("maintenance due in %d km", diff)
	default:
		return MaintenanceAlert{}, false
	}
	return a, true
}
