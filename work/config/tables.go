package config

// Tables holds the static protocol knowledge the clients and the detector
// run on: portal endpoint candidates, vendor MAC prefixes, emulated device
// models with their matching user agents and firmware strings, and the raw
// playlist link formats panels serve when the JSON API is disabled. The
// struct is built once by DefaultTables (or a test) and injected read-only;
// nothing mutates it after construction.
type Tables struct {
	PortalPaths    []string          // Candidate Stalker portal endpoints, tried in order
	MacPrefixes    []string          // Vendor OUI prefixes for MAC synthesis
	DeviceModels   map[string]string // 3-octet prefix -> emulated STB model
	UserAgents     map[string]string // Model -> portal user agent
	SerialPrefixes map[string]string // Model -> serial number digit prefix
	Firmware       map[string]string // Model -> firmware version string
	Hardware       map[string]string // Model -> hardware revision string
	Timezones      []string          // Plausible STB timezones for the cookie bundle
	M3ULinkFormats []string          // Raw playlist URL templates for the Xtream HEAD fallback
	XtreamAPIPaths []string          // API endpoint shapes probed for Xtream panels
	StalkerMarkers []string          // URL substrings that identify a Stalker portal
	DefaultModel   string            // Model assumed when a MAC prefix is unmapped
}

// DefaultTables returns the built-in protocol tables.
func DefaultTables() *Tables {
	return &Tables{
		PortalPaths: []string{
			"/stalker_portal/server/load.php",
			"/stalker_portal/c/portal.php",
			"/stalker_portal/stb/portal.php",
			"/portal.php",
			"/server/load.php",
			"/c/portal.php",
			"/c/server/load.php",
			"/cp/server/load.php",
			"/cp/portal.php",
			"/p/portal.php",
			"/k/portal.php",
			"/rmxportal/portal.php",
			"/cmdforex/portal.php",
			"/portalstb/portal.php",
			"/portalstb.php",
			"/magLoad.php",
			"/magLoad/portal.php",
			"/maglove/portal.php",
			"/client/portal.php",
			"/magportal/portal.php",
			"/magaccess/portal.php",
			"/powerfull/portal.php",
			"/portalmega.php",
			"/portalmega/portal.php",
			"/ministra/portal.php",
			"/korisnici/server/load.php",
			"/ghandi_portal/server/load.php",
			"/blowportal/portal.php",
			"/extraportal.php",
			"/emu2/server/load.php",
			"/emu/server/load.php",
			"/tek/server/load.php",
			"/mag/portal.php",
			"/Link_OK.php",
			"/Link_OK/portal.php",
			"/bs.mag.portal.php",
			"/bStream/portal.php",
			"/bStream/server/load.php",
			"/delko/portal.php",
			"/delko/server/load.php",
			"/aurora/portal.php",
			"/edge.php",
			"/portalcc.php",
			"/api/v2/server/load.php",
			"/api/v3/server/load.php",
			"/stalker_portal/api/server/load.php",
			"/stb/portal.php",
			"/stb_portal/portal.php",
			"/mag_portal/portal.php",
			"/portal/server/load.php",
			"/stalker/portal.php",
			"/mini/portal.php",
			"/maxi/portal.php",
			"/premium/portal.php",
			"/vip/portal.php",
			"/gold/portal.php",
			"/silver/portal.php",
			"/bronze/portal.php",
		},
		MacPrefixes: []string{
			"00:1A:79", // MAG 254/256/322/324/349/351
			"00:1B:3F", // MAG 250/260/270
			"00:21:5A", // MAG 200/245
			"00:13:CE", // MAG devices
			"BC:76:70", // MAG 351/352
			"84:DB:2F", // MAG devices
			"E4:3E:D6", // MAG devices
			"B4:E1:C4", // Infomir devices
			"00:22:58", // Infomir
			"AC:9B:0A", // Formuler devices
			"08:EB:ED", // X96 devices
			"74:23:44", // Android TV boxes
			"1C:CC:D6", // Nvidia Shield
			"B0:AC:13", // Apple TV
			"F4:5C:89", // Apple TV
			"28:CF:E9", // Apple TV
			"A0:99:9B", // Google devices
			"E8:EA:6A", // Android boxes
			"54:27:1E", // IPTV boxes
			"A4:02:B9", // Xiaomi Mi Box
			"E0:DB:55", // Amazon Fire TV
			"FC:65:DE", // Amazon Fire TV
			"40:B0:76", // Fire TV Stick
			"68:3E:34", // Roku devices
			"D8:31:CF", // Roku devices
			"B8:81:98", // Roku devices
			"08:05:81", // Samsung Smart TV
			"3C:BD:D8", // Samsung Smart TV
			"54:BD:79", // LG Smart TV
			"B8:86:87", // LG Smart TV
			"00:7F:28", // Generic STB
			"48:74:6E", // Generic Android
			"D0:5F:B8",
			"F0:EF:86",
			"30:9C:23",
			"78:11:DC",
			"4C:CC:6A",
			"2C:AB:00",
			"70:85:C2",
			"9C:04:EB",
			"A8:1E:84",
			"00:80:92",
		},
		DeviceModels: map[string]string{
			"00:1A:79": "MAG254",
			"00:1B:3F": "MAG250",
			"00:21:5A": "MAG200",
			"00:13:CE": "MAG260",
			"BC:76:70": "MAG351",
			"84:DB:2F": "MAG322",
			"E4:3E:D6": "MAG324",
			"B4:E1:C4": "MAG256",
			"00:22:58": "MAG349",
			"AC:9B:0A": "Formuler Z8",
			"08:EB:ED": "X96 Max",
			"74:23:44": "Android TV",
			"1C:CC:D6": "Nvidia Shield",
			"B0:AC:13": "Apple TV 4K",
			"F4:5C:89": "Apple TV HD",
			"28:CF:E9": "Apple TV 3rd",
			"A0:99:9B": "Chromecast",
			"E8:EA:6A": "Mi Box S",
			"54:27:1E": "IPTV Box",
			"A4:02:B9": "Mi Box 4",
			"E0:DB:55": "Fire TV Stick 4K",
			"FC:65:DE": "Fire TV Cube",
			"40:B0:76": "Fire TV Stick",
			"68:3E:34": "Roku Ultra",
			"D8:31:CF": "Roku Express",
			"B8:81:98": "Roku Premiere",
			"08:05:81": "Samsung QLED",
			"3C:BD:D8": "Samsung UHD",
			"54:BD:79": "LG OLED",
			"B8:86:87": "LG NanoCell",
		},
		UserAgents: map[string]string{
			"MAG200": "Mozilla/5.0 (QtEmbedded; U; Linux; C) AppleWebKit/533.3 (KHTML, like Gecko) MAG200 stbapp ver: 2 rev: 250 Safari/533.3",
			"MAG245": "Mozilla/5.0 (QtEmbedded; U; Linux; C) AppleWebKit/533.3 (KHTML, like Gecko) MAG245 stbapp ver: 2 rev: 1749 Safari/533.3",
			"MAG250": "Mozilla/5.0 (QtEmbedded; U; Linux; C) AppleWebKit/533.3 (KHTML, like Gecko) MAG250 stbapp ver: 4 rev: 1812 Mobile Safari/533.3",
			"MAG254": "Mozilla/5.0 (QtEmbedded; U; Linux; C) AppleWebKit/533.3 (KHTML, like Gecko) MAG254 stbapp ver: 4 rev: 2721 Mobile Safari/533.3",
			"MAG256": "Mozilla/5.0 (QtEmbedded; U; Linux; C) AppleWebKit/533.3 (KHTML, like Gecko) MAG256 stbapp ver: 4 rev: 2796 Mobile Safari/533.3",
			"MAG260": "Mozilla/5.0 (QtEmbedded; U; Linux; C) AppleWebKit/533.3 (KHTML, like Gecko) MAG260 stbapp ver: 4 rev: 1949 Mobile Safari/533.3",
			"MAG270": "Mozilla/5.0 (QtEmbedded; U; Linux; C) AppleWebKit/533.3 (KHTML, like Gecko) MAG270 stbapp ver: 4 rev: 2721 Mobile Safari/533.3",
			"MAG322": "Mozilla/5.0 (QtEmbedded; U; Linux; C) AppleWebKit/533.3 (KHTML, like Gecko) MAG322 stbapp ver: 4 rev: 2796 Mobile Safari/533.3",
			"MAG324": "Mozilla/5.0 (QtEmbedded; U; Linux; C) AppleWebKit/533.3 (KHTML, like Gecko) MAG324 stbapp ver: 4 rev: 2796 Mobile Safari/533.3",
			"MAG349": "Mozilla/5.0 (QtEmbedded; U; Linux; C) AppleWebKit/533.3 (KHTML, like Gecko) MAG349 stbapp ver: 4 rev: 2796 Mobile Safari/533.3",
			"MAG351": "Mozilla/5.0 (QtEmbedded; U; Linux; C) AppleWebKit/533.3 (KHTML, like Gecko) MAG351 stbapp ver: 4 rev: 2796 Mobile Safari/533.3",
			"MAG352": "Mozilla/5.0 (QtEmbedded; U; Linux; C) AppleWebKit/533.3 (KHTML, like Gecko) MAG352 stbapp ver: 4 rev: 2796 Mobile Safari/533.3",
		},
		SerialPrefixes: map[string]string{
			"MAG254": "254",
			"MAG256": "256",
			"MAG322": "322",
			"MAG324": "324",
			"MAG349": "349",
			"MAG351": "351",
		},
		Firmware: map[string]string{
			"MAG254": "v4.2.721",
			"MAG256": "v4.3.796",
			"MAG322": "v4.3.796",
			"MAG324": "v4.3.796",
			"MAG349": "v4.4.901",
			"MAG351": "v4.4.901",
		},
		Hardware: map[string]string{
			"MAG254": "1.0-BD-12",
			"MAG256": "2.0-BD-15",
			"MAG322": "1.0-BD-18",
			"MAG324": "1.0-BD-20",
			"MAG349": "1.0-BD-25",
			"MAG351": "1.0-BD-27",
		},
		Timezones: []string{
			"Europe/London", "Europe/Paris", "Europe/Berlin", "Europe/Rome",
			"Europe/Madrid", "Europe/Amsterdam", "Europe/Brussels", "Europe/Vienna",
			"Europe/Warsaw", "Europe/Prague", "Europe/Budapest", "Europe/Bucharest",
			"Europe/Sofia", "Europe/Athens", "Europe/Helsinki", "Europe/Stockholm",
			"Europe/Oslo", "Europe/Copenhagen", "Europe/Istanbul", "Europe/Moscow",
			"Europe/Kiev", "America/New_York", "America/Los_Angeles", "America/Chicago",
			"America/Denver", "America/Toronto", "America/Mexico_City", "America/Sao_Paulo",
			"America/Buenos_Aires", "Asia/Dubai", "Asia/Riyadh", "Asia/Kuwait",
			"Asia/Doha", "Asia/Baghdad", "Asia/Tehran", "Asia/Karachi",
			"Asia/Kolkata", "Asia/Dhaka", "Asia/Bangkok", "Asia/Jakarta",
			"Asia/Singapore", "Asia/Kuala_Lumpur", "Asia/Manila", "Asia/Shanghai",
			"Asia/Hong_Kong", "Asia/Taipei", "Asia/Tokyo", "Asia/Seoul",
			"Australia/Sydney", "Australia/Perth", "Pacific/Auckland", "Africa/Cairo",
			"Africa/Lagos", "Africa/Casablanca", "Africa/Tunis", "Africa/Algiers",
			"Africa/Johannesburg", "UTC",
		},
		M3ULinkFormats: []string{
			"/get.php?username={user}&password={pass}&type=m3u_plus&output=ts",
			"/get.php?username={user}&password={pass}&type=m3u&output=ts",
			"/get.php?username={user}&password={pass}&type=m3u_plus",
			"/live/{user}/{pass}/",
			"/{user}/{pass}/all.m3u",
			"/{user}/{pass}/live.m3u",
			"/m3u/{user}/{pass}/",
			"/iptv/{user}/{pass}/",
			"/{user}/{pass}/tv.m3u",
			"/get.php?username={user}&password={pass}&output=m3u8",
			"/enigma2.php?username={user}&password={pass}&type=get_vod_categories",
		},
		XtreamAPIPaths: []string{
			"/player_api.php",
			"/panel_api.php",
			"/api.php",
		},
		StalkerMarkers: []string{
			"stalker_portal",
			"/stalker/",
		},
		DefaultModel: "MAG254",
	}
}

// ModelForPrefix returns the emulated device model for a 3-octet MAC
// prefix, falling back to the default model when the prefix is unmapped.
func (t *Tables) ModelForPrefix(prefix string) string {
	if m, ok := t.DeviceModels[prefix]; ok {
		return m
	}
	return t.DefaultModel
}

// UserAgentForModel returns the portal user agent for a device model,
// falling back to the default model's agent.
func (t *Tables) UserAgentForModel(model string) string {
	if ua, ok := t.UserAgents[model]; ok {
		return ua
	}
	return t.UserAgents[t.DefaultModel]
}
