package extractor

// brandEntry maps a canonical brand name to the spellings seen in listings.
// The canonical name is always matched as an alias too.
type brandEntry struct {
	Name    string
	Aliases []string
}

var brandTable = []brandEntry{
	// Japan
	{"Toyota", []string{"тойота", "тойоту", "тоёта", "тайота"}},
	{"Lexus", []string{"лексус"}},
	{"Nissan", []string{"ниссан", "нисан"}},
	{"Infiniti", []string{"инфинити", "infinity"}},
	{"Honda", []string{"хонда", "хонду"}},
	{"Acura", []string{"акура"}},
	{"Mazda", []string{"мазда", "мазду"}},
	{"Mitsubishi", []string{"митсубиси", "мицубиси", "митсубиши", "мицубиши"}},
	{"Subaru", []string{"субару"}},
	{"Suzuki", []string{"сузуки"}},
	{"Daihatsu", []string{"дайхатсу", "дайхацу"}},
	{"Isuzu", []string{"исузу"}},
	{"Scion", []string{"сцион"}},
	{"Datsun", []string{"датсун"}},

	// Korea
	{"Hyundai", []string{"хендай", "хендэ", "хундай", "хёндай", "хюндай", "hundai"}},
	{"Kia", []string{"киа", "kia motors"}},
	{"Genesis", []string{"генезис", "дженезис"}},
	{"SsangYong", []string{"ssang yong", "санг йонг", "сангйонг", "ссангйонг"}},
	{"Daewoo", []string{"дэу", "деу", "daewoo motors"}},

	// Germany
	{"BMW", []string{"бмв", "бэха"}},
	{"Mercedes-Benz", []string{"mercedes", "mercedes benz", "мерседес", "мерседес-бенц", "мерседес бенц", "мерс", "benz"}},
	{"Audi", []string{"ауди"}},
	{"Volkswagen", []string{"vw", "фольксваген", "фольцваген", "volkswagen ag"}},
	{"Porsche", []string{"порше", "порш"}},
	{"Opel", []string{"опель"}},
	{"Smart", []string{"смарт"}},
	{"Maybach", []string{"майбах"}},
	{"Alpina", []string{"альпина"}},

	// Europe
	{"Skoda", []string{"škoda", "шкода", "шкоду"}},
	{"Seat", []string{"сеат"}},
	{"Cupra", []string{"купра"}},
	{"Renault", []string{"рено"}},
	{"Peugeot", []string{"пежо"}},
	{"Citroen", []string{"citroën", "ситроен", "ситроэн"}},
	{"DS", []string{"ds automobiles"}},
	{"Fiat", []string{"фиат"}},
	{"Alfa Romeo", []string{"alfa", "альфа ромео"}},
	{"Lancia", []string{"лянча", "лянчия"}},
	{"Maserati", []string{"мазерати"}},
	{"Ferrari", []string{"феррари"}},
	{"Lamborghini", []string{"ламборгини", "ламборджини"}},
	{"Volvo", []string{"вольво"}},
	{"Saab", []string{"сааб"}},
	{"Polestar", []string{"полестар"}},
	{"Dacia", []string{"дачия"}},
	{"Abarth", []string{"абарт"}},

	// UK
	{"Land Rover", []string{"landrover", "ленд ровер", "лэнд ровер", "ленд-ровер", "лендровер"}},
	{"Range Rover", []string{"рендж ровер", "рэндж ровер", "range-rover"}},
	{"Jaguar", []string{"ягуар"}},
	{"MINI", []string{"mini cooper", "мини купер"}},
	{"Bentley", []string{"бентли"}},
	{"Rolls-Royce", []string{"rolls royce", "роллс-ройс", "роллс ройс"}},
	{"Aston Martin", []string{"астон мартин"}},
	{"McLaren", []string{"макларен"}},
	{"Lotus", []string{"лотус"}},

	// USA
	{"Ford", []string{"форд"}},
	{"Chevrolet", []string{"шевроле", "шевролет", "chevy"}},
	{"Cadillac", []string{"кадиллак", "кадилак"}},
	{"Buick", []string{"бьюик"}},
	{"GMC", []string{"джи эм си"}},
	{"Chrysler", []string{"крайслер"}},
	{"Dodge", []string{"додж"}},
	{"Jeep", []string{"джип"}},
	{"RAM", []string{"ram trucks"}},
	{"Lincoln", []string{"линкольн"}},
	{"Tesla", []string{"тесла", "теслу"}},
	{"Hummer", []string{"хаммер"}},
	{"Pontiac", []string{"понтиак"}},
	{"Rivian", []string{"ривиан"}},
	{"Lucid", []string{"люсид"}},
	{"Fisker", []string{"фискер"}},

	// Russia and CIS
	{"Lada", []string{"лада", "ладу", "ваз", "vaz", "жигули"}},
	{"UAZ", []string{"уаз"}},
	{"GAZ", []string{"газель", "gazelle"}},
	{"Moskvich", []string{"москвич"}},
	{"ZAZ", []string{"заз", "запорожец"}},
	{"Aurus", []string{"аурус"}},
	{"Evolute", []string{"эволют"}},
	{"Sollers", []string{"соллерс"}},
	{"TagAZ", []string{"тагаз"}},
	{"Ravon", []string{"равон"}},
	{"Kamaz", []string{"камаз"}},
	{"XCite", []string{"икс сайт"}},

	// China
	{"Chery", []string{"чери", "черри"}},
	{"Haval", []string{"хавал", "хавейл", "хавэйл"}},
	{"Great Wall", []string{"greatwall", "грейт вол", "грейт волл", "gwm"}},
	{"Tank", []string{"танк"}},
	{"Geely", []string{"джили", "джилли"}},
	{"Changan", []string{"чанган", "чанъань", "чангань"}},
	{"BYD", []string{"бид", "би вай ди"}},
	{"Exeed", []string{"эксид", "эксиид"}},
	{"Omoda", []string{"омода"}},
	{"Jaecoo", []string{"джейку", "джеку"}},
	{"Jetour", []string{"джетур"}},
	{"JAC", []string{"джак"}},
	{"FAW", []string{"фав"}},
	{"Hongqi", []string{"хончи", "хунци", "хонгчи"}},
	{"Dongfeng", []string{"донгфенг", "дунфэн", "донфенг"}},
	{"Voyah", []string{"воя"}},
	{"Li Auto", []string{"lixiang", "li xiang", "лисян", "лисянг", "ли авто"}},
	{"Zeekr", []string{"зикр", "зекр"}},
	{"Lynk & Co", []string{"lynk co", "lynk", "линк энд ко"}},
	{"GAC", []string{"гак", "trumpchi"}},
	{"Kaiyi", []string{"кайи"}},
	{"Livan", []string{"ливан"}},
	{"Soueast", []string{"соуист", "соуэст"}},
	{"BAIC", []string{"баик", "beijing"}},
	{"Haima", []string{"хайма"}},
	{"Brilliance", []string{"бриллианс", "брилианс"}},
	{"Lifan", []string{"лифан"}},
	{"Zotye", []string{"зоти", "зотье"}},
	{"Foton", []string{"фотон"}},
	{"Geometry", []string{"геометри"}},
	{"NIO", []string{"нио"}},
	{"Xpeng", []string{"сяопэн", "икспенг", "xiaopeng"}},
	{"AITO", []string{"аито", "seres"}},
	{"Denza", []string{"денза"}},
	{"Wuling", []string{"вулинг", "улин"}},
	{"Baojun", []string{"баоцзюнь", "баоджун"}},
	{"MG", []string{"morris garages", "эм джи"}},
	{"Roewe", []string{"роеве", "роэве"}},
	{"Avatr", []string{"аватр"}},
	{"Neta", []string{"нета", "hozon"}},
	{"Leapmotor", []string{"лип мотор", "липмотор"}},
	{"JMC", []string{"джмс"}},
	{"Jetta", []string{"джетта"}},
	{"Venucia", []string{"венусия"}},
	{"Forthing", []string{"форсинг"}},
	{"Ora", []string{"ора"}},
	{"Skyworth", []string{"скайворт", "skywell"}},
	{"Dayun", []string{"даюн"}},
	{"Rising Auto", []string{"райзинг"}},
	{"Oting", []string{"отинг"}},
	{"Hycan", []string{"хайкан"}},
	{"Weltmeister", []string{"вельтмайстер"}},
	{"Maxus", []string{"максус"}},
	{"Dongfeng Fengon", []string{"fengon", "фенгон"}},
	{"Luxeed", []string{"люксид"}},
	{"Stelato", []string{"стелато"}},
	{"iCar", []string{"айкар"}},
	{"Yangwang", []string{"янван"}},
	{"Fangchengbao", []string{"фанчэнбао"}},
	{"Deepal", []string{"дипал"}},

	// Other
	{"Tata", []string{"тата"}},
	{"Mahindra", []string{"махиндра"}},
	{"Proton", []string{"протон"}},
	{"Perodua", []string{"перодуа"}},
	{"Vinfast", []string{"винфаст"}},
	{"Togg", []string{"тогг"}},
	{"Iran Khodro", []string{"иран ходро"}},
}
