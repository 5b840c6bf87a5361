package server

import (
	"net/http"

	"github.com/jrsteele09/go-agency-admin/apimodel"
	"github.com/jrsteele09/go-agency-admin/server/resourcerepo"
)

// ReportSummaryHandler computes the dashboard figures from the stored
// records.
func (s *Server) ReportSummaryHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		summary, err := s.reportSummary()
		if err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, summary)
	}
}

func (s *Server) reportSummary() (apimodel.ReportSummary, error) {
	var out apimodel.ReportSummary
	records := make(map[string][]resourcerepo.Document, 5)
	for _, name := range []string{"customers", "bookings", "payments", "expenses", "vehicles"} {
		docs, err := s.repos.Records.List(name, nil)
		if err != nil {
			return out, err
		}
		records[name] = docs
	}

	out.Customers = len(records["customers"])
	out.Bookings = len(records["bookings"])
	for _, b := range records["bookings"] {
		switch b.String("status") {
		case "", "pending", "confirmed":
			out.OpenBookings++
		}
	}
	for _, p := range records["payments"] {
		switch p.String("status") {
		case "", "paid":
			out.Revenue += p.Number("amount")
		case "pending":
			out.PendingAmount += p.Number("amount")
		}
	}
	for _, e := range records["expenses"] {
		out.Expenses += e.Number("amount")
	}
	out.Profit = out.Revenue - out.Expenses
	for _, v := range records["vehicles"] {
		if v.String("status") != "maintenance" {
			out.ActiveFleet++
		}
	}
	return out, nil
}

type configItem struct {
	Code  string `json:"code"`
	Label string `json:"label"`
}

var configLists = map[string][]configItem{
	"countries": {
		{"KE", "Kenya"}, {"TZ", "Tanzania"}, {"UG", "Uganda"}, {"RW", "Rwanda"},
		{"ZA", "South Africa"}, {"GB", "United Kingdom"}, {"US", "United States"}, {"DE", "Germany"},
	},
	"payment-methods": {
		{"cash", "Cash"}, {"card", "Card"}, {"bank-transfer", "Bank transfer"}, {"mobile-money", "Mobile money"},
	},
	"booking-statuses": {
		{"pending", "Pending"}, {"confirmed", "Confirmed"}, {"completed", "Completed"}, {"cancelled", "Cancelled"},
	},
	"payment-statuses": {
		{"pending", "Pending"}, {"paid", "Paid"}, {"refunded", "Refunded"},
	},
	"vehicle-statuses": {
		{"available", "Available"}, {"in-service", "In service"}, {"maintenance", "Maintenance"},
	},
	"expense-categories": {
		{"fuel", "Fuel"}, {"maintenance", "Maintenance"}, {"accommodation", "Accommodation"},
		{"park-fees", "Park fees"}, {"salaries", "Salaries"}, {"office", "Office"},
	},
	"supplier-categories": {
		{"hotel", "Hotel"}, {"transport", "Transport"}, {"guide", "Guide"}, {"catering", "Catering"},
	},
	"roles": {
		{"admin", "Administrator"}, {"manager", "Manager"}, {"agent", "Booking agent"}, {"accountant", "Accountant"},
	},
}

// ConfigListHandler serves a static reference list.
func (s *Server) ConfigListHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := r.PathValue("list")
		items, ok := configLists[name]
		if !ok {
			writeAPIError(w, http.StatusNotFound, "not_found", "", "no config list "+name)
			return
		}
		writeJSON(w, http.StatusOK, items)
	}
}
