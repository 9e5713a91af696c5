package finance

// KnownCategories is the free-text taxonomy the UI offers for autocomplete.
// Users may still submit any category string; this list is advisory.
var KnownCategories = []string{
	// income
	"Salary",
	"Bonus",
	"Freelance",
	"Business Income",
	"Rental Income",
	"Dividends",
	"Interest",
	"Capital Gains",
	"Pension",
	"Social Benefits",
	"Child Benefit",
	"Tax Refund",
	"Cashback",
	"Gifts Received",
	"Royalties",
	"Side Hustle",
	"Grants",
	"Alimony Received",
	"Sale of Goods",
	"Other Income",

	// housing & utilities
	"Rent",
	"Mortgage",
	"Property Tax",
	"Home Insurance",
	"Home Repair",
	"Furniture",
	"Appliances",
	"Electricity",
	"Gas",
	"Water",
	"Heating",
	"Internet",
	"Mobile Phone",
	"TV & Streaming",

	// daily living
	"Groceries",
	"Restaurants",
	"Cafe & Coffee",
	"Fast Food",
	"Alcohol & Bars",
	"Tobacco",
	"Clothing",
	"Shoes",
	"Personal Care",
	"Haircut & Beauty",
	"Laundry",

	// transport
	"Public Transport",
	"Taxi & Rideshare",
	"Fuel",
	"Parking",
	"Car Maintenance",
	"Car Insurance",
	"Car Payment",
	"Tolls",
	"Bicycle",

	// health & family
	"Health Insurance",
	"Doctor & Dentist",
	"Pharmacy",
	"Fitness & Gym",
	"Childcare",
	"School & Tuition",
	"Books & Courses",
	"Pets",
	"Alimony Paid",

	// leisure
	"Entertainment",
	"Cinema & Events",
	"Hobbies",
	"Games",
	"Travel",
	"Hotels",
	"Flights",
	"Gifts Given",
	"Charity",
	"Subscriptions",

	// financial
	"Bank Fees",
	"Loan Payment",
	"Credit Card Payment",
	"Taxes",
	"Insurance (Other)",
	"Fines",

	// investments
	"Stocks",
	"Bonds",
	"ETF",
	"Mutual Funds",
	"Crypto",
	"Real Estate",
	"Retirement Fund",
	"Savings Deposit",
	"Gold & Commodities",
	"Other Investment",
}
