package store

import "fleetroute/internal/model"

// Seed returns the demo wholesaler dataset: two Kerala warehouses,
// seven candidate route clusters out of the Trivandrum godown, and a
// small mixed fleet. Used by the memory store when no database is
// configured.
func Seed() ([]model.Warehouse, []model.Cluster, []model.Vehicle) {
	warehouses := []model.Warehouse{
		{ID: "wh_tvm", Name: "Trivandrum Central Godown", Location: model.GeoPoint{Lat: 8.5241, Lng: 76.9366}, Vehicles: 4},
		{ID: "wh_atl", Name: "Attingal Depot", Location: model.GeoPoint{Lat: 8.6960, Lng: 76.8150}, Vehicles: 2},
	}

	clusters := []model.Cluster{
		{
			ID: "cl_attingal", Name: "Attingal Route", Status: model.ClusterPlanned,
			Stops: []model.RetailerStop{
				{Name: "Retailer A", Location: model.GeoPoint{Lat: 8.6953, Lng: 76.8150}, Value: 28000},
			},
		},
		{
			ID: "cl_varkala", Name: "Varkala Route", Status: model.ClusterPlanned,
			Stops: []model.RetailerStop{
				{Name: "Retailer B", Location: model.GeoPoint{Lat: 8.7379, Lng: 76.7163}, Value: 32000},
			},
		},
		{
			ID: "cl_kilimanoor", Name: "Kilimanoor Route", Status: model.ClusterPlanned,
			Stops: []model.RetailerStop{
				{Name: "Retailer C", Location: model.GeoPoint{Lat: 8.7700, Lng: 76.8700}, Value: 18000},
			},
		},
		{
			ID: "cl_chirayinkeezhu", Name: "Chirayinkeezhu Route", Status: model.ClusterPlanned,
			Stops: []model.RetailerStop{
				{Name: "Retailer D", Location: model.GeoPoint{Lat: 8.6670, Lng: 76.7810}, Value: 22000},
			},
		},
		{
			ID: "cl_kallambalam", Name: "Kallambalam Belt", Status: model.ClusterPlanned,
			Stops: []model.RetailerStop{
				{Name: "Attingal Super Mart", Location: model.GeoPoint{Lat: 8.6961, Lng: 76.8154}, Value: 26000},
				{Name: "Kallambalam Traders", Location: model.GeoPoint{Lat: 8.7148, Lng: 76.8031}, Value: 21000},
				{Name: "Navaikulam Stores", Location: model.GeoPoint{Lat: 8.7353, Lng: 76.7945}, Value: 19000},
			},
		},
		{
			ID: "cl_venjaramoodu", Name: "Venjaramoodu Route", Status: model.ClusterPlanned,
			Stops: []model.RetailerStop{
				{Name: "Retailer F", Location: model.GeoPoint{Lat: 8.6715, Lng: 76.9380}, Value: 15000},
			},
		},
		{
			ID: "cl_nedumangad", Name: "Nedumangad Route", Status: model.ClusterPlanned,
			Stops: []model.RetailerStop{
				{Name: "Retailer G", Location: model.GeoPoint{Lat: 8.6100, Lng: 77.0100}, Value: 24000},
			},
		},
	}

	vehicles := []model.Vehicle{
		{ID: "veh_1", Name: "Tata Ace KL-01-4821", Category: "van", CapacityKg: 750, CostPerKm: 11, Status: model.VehicleAvailable, WarehouseID: "wh_tvm"},
		{ID: "veh_2", Name: "Ashok Leyland Dost KL-01-7734", Category: "van", CapacityKg: 1250, CostPerKm: 14, Status: model.VehicleAvailable, WarehouseID: "wh_tvm"},
		{ID: "veh_3", Name: "Eicher Pro KL-16-2210", Category: "truck", CapacityKg: 4500, CostPerKm: 22, Status: model.VehicleAvailable, WarehouseID: "wh_tvm"},
		{ID: "veh_4", Name: "Mahindra Jeeto KL-01-9012", Category: "van", CapacityKg: 600, CostPerKm: 9, Status: model.VehicleAvailable, WarehouseID: "wh_tvm"},
		{ID: "veh_5", Name: "Tata 407 KL-16-5561", Category: "truck", CapacityKg: 2200, CostPerKm: 18, Status: model.VehicleAvailable, WarehouseID: "wh_atl"},
		{ID: "veh_6", Name: "Hero Cargo KL-16-0087", Category: "bike", CapacityKg: 60, CostPerKm: 3, Status: model.VehicleAvailable, WarehouseID: "wh_atl"},
	}

	return warehouses, clusters, vehicles
}
